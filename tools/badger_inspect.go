package main

import (
	"club-chat/internal"
	"club-chat/readstate"
	"club-chat/repositories"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

const maxDetail = 48

type Config struct {
	DBPath  string `envconfig:"INSPECT_DB" default:"./data/badger"`
	Prefix  string `envconfig:"INSPECT_PREFIX" default:"msg:"`
	Colours bool   `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Config error: ", err)
	}
	dbPath := flag.String("db", config.DBPath, "Path to badger DB")
	prefix := flag.String("prefix", config.Prefix, "Prefix to scan (msg:, user:, local:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Namespace", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				row := describe(string(item.Key()), v)
				typeLabel := row.Type
				if config.Colours {
					typeLabel = colourFor(row.Type).Render(row.Type)
				}
				table.Append([]string{row.Key, typeLabel, row.Timestamp, row.EntityID, row.Namespace, row.Detail})
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("%d keys under %q\n", rows, *prefix)
}

// describe decodes the known value layouts and falls back to the key structure.
func describe(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m repositories.DiskMessage
		if err := json.Unmarshal(val, &m); err != nil {
			row.Detail = "Unreadable message: " + err.Error()
			return row
		}
		row.Type = "CHAT"
		row.Timestamp = m.At.Format("15:04:05")
		row.EntityID = shortID(m.ID.String())
		row.Namespace = string(m.ClubID)
		row.Detail = truncate(m.SenderName + ": " + m.Text)
	case strings.HasPrefix(key, "user_id:"):
		row.Type = "INDEX"
		row.EntityID = shortID(strings.TrimPrefix(key, "user_id:"))
		row.Detail = "-> " + string(val)
	case strings.HasPrefix(key, "user:"):
		var u repositories.User
		if err := json.Unmarshal(val, &u); err != nil {
			row.Detail = "Unreadable user: " + err.Error()
			return row
		}
		// The password hash is never printed
		row.Type = "USER"
		row.Timestamp = u.CreatedAt.Format("15:04:05")
		row.EntityID = shortID(u.UID)
		row.Namespace = string(u.Role)
		row.Detail = fmt.Sprintf("%s <%s> clubs=%d", u.Name, u.Email, len(u.EnrolledClubs))
	case strings.HasPrefix(key, "local:"+readstate.Key("")):
		var marks map[string]string
		_ = json.Unmarshal(val, &marks)
		row.Type = "READ"
		row.EntityID = shortID(strings.TrimPrefix(key, "local:"+readstate.Key("")))
		row.Detail = fmt.Sprintf("%d clubs tracked", len(marks))
	}
	return row
}

func colourFor(rowType string) color.Style {
	switch rowType {
	case "CHAT":
		return color.New(color.FgGreen)
	case "USER", "INDEX":
		return color.New(color.FgCyan)
	case "READ":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGray)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string) string {
	if len(s) > maxDetail {
		return s[:maxDetail-3] + "..."
	}
	return s
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}

package e2e

import (
	"bytes"
	"club-chat/client"
	"club-chat/domain/chat"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	http   *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL is not set")
	}
	s.http = &http.Client{Timeout: 10 * time.Second}
}

func (s *BaseSuite) header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call sends a JSON request to the REST API and decodes the response into out when given.
func (s *BaseSuite) Call(name, method, path, token string, body, out any) int {
	s.header(name)

	var payload io.Reader
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		s.Require().NoError(err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, strings.TrimSuffix(s.Config.ServerURL, "/")+path, payload)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	s.Require().NoError(err, "Failed to reach "+s.Config.ServerURL)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintf(&logBuilder, "\nREQUEST:\n%s\nRESPONSE:\n%s", raw, respBody)
	}
	s.T().Log(logBuilder.String())

	if out != nil && len(respBody) > 0 && resp.StatusCode < http.StatusBadRequest {
		s.Require().NoError(json.Unmarshal(respBody, out))
	}
	return resp.StatusCode
}

// WithClub opens a websocket session on the club for the duration of fn.
func (s *BaseSuite) WithClub(name, token string, clubID chat.ClubID, fn func(ctx context.Context, c *client.Client)) {
	s.header(name)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, s.Config.ServerURL, clubID, token)
	s.Require().NoError(err, "Failed to open chat session on "+string(clubID))
	defer func() { _ = c.Close() }()

	fn(ctx, c)
}

package www

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"node.town/captioner/room"
)

func TestGetToken(t *testing.T) {
	var minted []string
	mint := func(roomName, identity string) (string, error) {
		if roomName == "broken" {
			return "", errors.New("bad secret")
		}
		minted = append(minted, roomName+"/"+identity)
		return "jwt-for-" + identity, nil
	}
	srv := httptest.NewServer(NewRouter(mint, log.New(io.Discard)))
	defer srv.Close()

	tests := []struct {
		name      string
		body      string
		status    int
		wantToken string
	}{
		{"ok", `{"roomName":"standup","participantName":"alice"}`, http.StatusOK, "jwt-for-alice"},
		{"missing participant", `{"roomName":"standup"}`, http.StatusBadRequest, ""},
		{"missing room", `{"participantName":"alice"}`, http.StatusBadRequest, ""},
		{"not json", `roomName=standup`, http.StatusBadRequest, ""},
		{"signing error", `{"roomName":"broken","participantName":"alice"}`, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/getToken", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var tr room.TokenResponse
			if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tr.Token != tt.wantToken {
				t.Errorf("token = %q, want %q", tr.Token, tt.wantToken)
			}
			if tt.status != http.StatusOK && tr.Error == "" {
				t.Error("error responses should carry an error message")
			}
		})
	}

	if len(minted) != 1 || minted[0] != "standup/alice" {
		t.Errorf("minted = %v", minted)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := httptest.NewServer(NewRouter(func(string, string) (string, error) {
		return "x", nil
	}, log.New(io.Discard)))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/getToken", nil)
	req.Header.Set("Origin", "https://meet.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("preflight response missing Access-Control-Allow-Origin")
	}
}

func TestFetchMintedToken(t *testing.T) {
	mint := func(roomName, identity string) (string, error) {
		return room.NewToken("devkey", "devsecret-devsecret-devsecret-00", roomName, identity, 0)
	}
	srv := httptest.NewServer(NewRouter(mint, log.New(io.Discard)))
	defer srv.Close()

	token, err := room.FetchToken(context.Background(), srv.URL+"/getToken", "standup", "carol")
	if err != nil {
		t.Fatalf("FetchToken: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("expected a JWT, got %q", token)
	}
}

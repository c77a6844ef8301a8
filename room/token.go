package room

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/livekit/protocol/auth"
)

// DefaultTokenTTL is how long a minted room token stays valid.
const DefaultTokenTTL = 24 * time.Hour

var ErrMissingFields = errors.New("roomName and participantName are required")

// NewToken mints a token that lets identity join roomName and exchange
// media and data.
func NewToken(apiKey, apiSecret, roomName, identity string, ttl time.Duration) (string, error) {
	if roomName == "" || identity == "" {
		return "", ErrMissingFields
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)
	grant.SetCanPublishData(true)

	at := auth.NewAccessToken(apiKey, apiSecret)
	at.AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(ttl)
	return at.ToJWT()
}

type TokenRequest struct {
	RoomName        string `json:"roomName"`
	ParticipantName string `json:"participantName"`
}

type TokenResponse struct {
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

// FetchToken asks a credential endpoint for a room token.
func FetchToken(ctx context.Context, endpoint, roomName, participantName string) (string, error) {
	body, err := json.Marshal(TokenRequest{
		RoomName:        roomName,
		ParticipantName: participantName,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	var tr TokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf(
			"unexpected token response: %d, %s",
			resp.StatusCode,
			string(data),
		)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint: %d, %s", resp.StatusCode, tr.Error)
	}
	if tr.Token == "" {
		return "", errors.New("token endpoint returned no token")
	}
	return tr.Token, nil
}

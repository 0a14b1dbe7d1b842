// Package twitchapi contains minimal helpers for the Twitch Helix API and the
// id.twitch.tv OAuth endpoints: user id resolution, live status, channel title,
// clips and moderation bans.
package twitchapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nicklaw5/helix/v2"
)

// ErrNotFound is returned when Helix has no data for the lookup.
var ErrNotFound = errors.New("twitch: not found")

// APIError is a non-2xx Helix response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("helix: %d %s", e.Status, e.Message)
}

// UserTokenSource yields the bot's user access token.
type UserTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// HelixClient calls Helix. Reads use the app token; channel writes use the user token.
type HelixClient struct {
	AppTokenSource  *TokenSource
	UserTokenSource UserTokenSource
	ClientID        string
	HTTPClient      *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

// appClient returns a helix client authorized with the app access token.
func (hc *HelixClient) appClient(ctx context.Context) (*helix.Client, error) {
	if hc.AppTokenSource == nil {
		return nil, errors.New("helix: no app token source")
	}
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return nil, err
	}
	return hc.newClient(&helix.Options{AppAccessToken: tok})
}

// userClient returns a helix client authorized with the bot's user token.
// Tokens rotate on refresh, so clients are built per call.
func (hc *HelixClient) userClient(ctx context.Context) (*helix.Client, error) {
	if hc.UserTokenSource == nil {
		return nil, errors.New("helix: no user token source")
	}
	tok, err := hc.UserTokenSource.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return hc.newClient(&helix.Options{UserAccessToken: tok})
}

func (hc *HelixClient) newClient(opts *helix.Options) (*helix.Client, error) {
	opts.ClientID = hc.ClientID
	opts.HTTPClient = hc.http()
	c, err := helix.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("helix: NewClient: %w", err)
	}
	return c, nil
}

// checkResponse turns a non-2xx helix response into an *APIError.
func checkResponse(rc helix.ResponseCommon) error {
	if rc.StatusCode >= 200 && rc.StatusCode <= 299 {
		return nil
	}
	msg := rc.ErrorMessage
	if msg == "" {
		msg = rc.Error
	}
	return &APIError{Status: rc.StatusCode, Message: msg}
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	c, err := hc.appClient(ctx)
	if err != nil {
		return "", err
	}
	resp, err := c.GetUsers(&helix.UsersParams{Logins: []string{login}})
	if err != nil {
		return "", fmt.Errorf("helix: GetUsers: %w", err)
	}
	if err := checkResponse(resp.ResponseCommon); err != nil {
		return "", err
	}
	if len(resp.Data.Users) == 0 {
		return "", fmt.Errorf("user %q: %w", login, ErrNotFound)
	}
	return resp.Data.Users[0].ID, nil
}

// Stream is a live stream as reported by Helix.
type Stream struct {
	ID        string
	UserID    string
	Title     string
	GameName  string
	Viewers   int
	StartedAt time.Time
}

// GetStream returns the live stream for userID, or nil when offline.
func (hc *HelixClient) GetStream(ctx context.Context, userID string) (*Stream, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID empty")
	}
	c, err := hc.appClient(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.GetStreams(&helix.StreamsParams{UserIDs: []string{userID}})
	if err != nil {
		return nil, fmt.Errorf("helix: GetStreams: %w", err)
	}
	if err := checkResponse(resp.ResponseCommon); err != nil {
		return nil, err
	}
	if len(resp.Data.Streams) == 0 {
		return nil, nil
	}
	s := resp.Data.Streams[0]
	return &Stream{
		ID:        s.ID,
		UserID:    s.UserID,
		Title:     s.Title,
		GameName:  s.GameName,
		Viewers:   s.ViewerCount,
		StartedAt: s.StartedAt,
	}, nil
}

// UpdateTitle changes the broadcaster's stream title.
func (hc *HelixClient) UpdateTitle(ctx context.Context, broadcasterID, title string) error {
	if broadcasterID == "" || title == "" {
		return fmt.Errorf("broadcasterID and title required")
	}
	c, err := hc.userClient(ctx)
	if err != nil {
		return err
	}
	resp, err := c.EditChannelInformation(&helix.EditChannelInformationParams{
		BroadcasterID: broadcasterID,
		Title:         title,
	})
	if err != nil {
		return fmt.Errorf("helix: EditChannelInformation: %w", err)
	}
	return checkResponse(resp.ResponseCommon)
}

// Clip is a freshly created clip.
type Clip struct {
	ID      string
	EditURL string
}

// URL returns the public clip link.
func (c Clip) URL() string { return "https://clips.twitch.tv/" + c.ID }

// CreateClip captures a clip of the broadcaster's live stream.
func (hc *HelixClient) CreateClip(ctx context.Context, broadcasterID string) (*Clip, error) {
	if broadcasterID == "" {
		return nil, fmt.Errorf("broadcasterID empty")
	}
	c, err := hc.userClient(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.CreateClip(&helix.CreateClipParams{BroadcasterID: broadcasterID})
	if err != nil {
		return nil, fmt.Errorf("helix: CreateClip: %w", err)
	}
	if err := checkResponse(resp.ResponseCommon); err != nil {
		return nil, err
	}
	if len(resp.Data.ClipEditURLs) == 0 {
		return nil, errors.New("helix: clip response had no data")
	}
	clip := resp.Data.ClipEditURLs[0]
	return &Clip{ID: clip.ID, EditURL: clip.EditURL}, nil
}

// BanUser bans userID, or times them out when duration > 0.
func (hc *HelixClient) BanUser(ctx context.Context, broadcasterID, moderatorID, userID string, duration time.Duration, reason string) error {
	if broadcasterID == "" || moderatorID == "" || userID == "" {
		return fmt.Errorf("broadcasterID, moderatorID and userID required")
	}
	c, err := hc.userClient(ctx)
	if err != nil {
		return err
	}
	resp, err := c.BanUser(&helix.BanUserParams{
		BroadcasterID: broadcasterID,
		ModeratorId:   moderatorID,
		Body: helix.BanUserRequestBody{
			UserId:   userID,
			Duration: int(duration / time.Second),
			Reason:   reason,
		},
	})
	if err != nil {
		return fmt.Errorf("helix: BanUser: %w", err)
	}
	return checkResponse(resp.ResponseCommon)
}

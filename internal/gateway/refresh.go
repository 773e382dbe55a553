package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/verdantlabs/plantdash/internal/gwerrors"
)

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

type refreshOutcome struct {
	token string
	err   error
	epoch uint64
}

func (c *Client) currentEpoch() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.epoch
}

// refresh returns a new access token and the epoch of the refresh that produced it. seenEpoch is
// the epoch observed when the unauthorized request was sent: if a refresh settled since then its
// outcome is reused, otherwise the caller joins the refresh in flight or starts one.
func (c *Client) refresh(ctx context.Context, seenEpoch uint64) (string, uint64, error) {
	c.lock.Lock()
	if c.epoch != seenEpoch {
		outcome := c.lastRefresh
		c.lock.Unlock()
		return outcome.token, outcome.epoch, outcome.err
	}
	key := "refresh-" + strconv.FormatUint(seenEpoch, 10)
	ch := c.refreshGroup.DoChan(key, func() (any, error) {
		return c.runRefresh(ctx), nil
	})
	c.lock.Unlock()

	select {
	case res := <-ch:
		outcome := res.Val.(refreshOutcome)
		return outcome.token, outcome.epoch, outcome.err
	case <-ctx.Done():
		return "", 0, ctx.Err()
	}
}

// runRefresh performs the refresh call and records its outcome. It does not stop when the caller
// that started it is cancelled, other callers may be waiting for the same outcome.
func (c *Client) runRefresh(parent context.Context) refreshOutcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.refreshTimeout)
	defer cancel()
	c.lock.Lock()
	generation := c.tokenGeneration
	c.lock.Unlock()
	refreshID, err := c.idGenerator.ID()
	if err != nil {
		slog.Debug("GATEWAY", "message", "could not generate a refresh ID", "error", err)
	}
	slog.Info("GATEWAY", "message", "refreshing the access token", "refreshID", refreshID)

	token, err := c.callRefreshEndpoint(ctx)
	if err != nil {
		slog.Info("GATEWAY", "message", "token refresh failed", "refreshID", refreshID, "error", err)
		c.metrics.refreshed(false)
		err = gwerrors.NewSessionExpiredError("token refresh failed", err)
	} else {
		c.metrics.refreshed(true)
		var storeErr error
		if c.sameGeneration(generation) {
			storeErr = c.tokenStore.Set(ctx, token)
		}
		if storeErr != nil {
			slog.Error(
				"GATEWAY",
				"message",
				"could not save the refreshed token, keeping it in memory",
				"refreshID",
				refreshID,
				"error",
				storeErr,
			)
		}
		slog.Debug("GATEWAY", "message", "token refresh succeeded", "refreshID", refreshID)
	}

	c.lock.Lock()
	c.epoch++
	outcome := refreshOutcome{token: token, err: err, epoch: c.epoch}
	c.lastRefresh = outcome
	if err == nil && c.tokenGeneration == generation {
		c.memToken = token
	}
	c.lock.Unlock()

	if err != nil {
		c.expireSession(ctx, outcome.epoch)
	}
	return outcome
}

func (c *Client) sameGeneration(generation uint64) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.tokenGeneration == generation
}

func (c *Client) callRefreshEndpoint(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.refreshPath), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer discard(res)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("%w: the refresh endpoint responded with %d", gwerrors.ErrRefreshFailed, res.StatusCode)
	}
	var body refreshResponse
	err = json.NewDecoder(res.Body).Decode(&body)
	if err != nil {
		return "", fmt.Errorf("%w: cannot decode the refresh response: %w", gwerrors.ErrRefreshFailed, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: the refresh response has no access token", gwerrors.ErrRefreshFailed)
	}
	return body.AccessToken, nil
}

// expireSession clears the stored token and calls the logout handler, once per refresh outcome.
func (c *Client) expireSession(ctx context.Context, epoch uint64) {
	c.lock.Lock()
	if epoch <= c.loggedOutEpoch {
		c.lock.Unlock()
		return
	}
	c.loggedOutEpoch = epoch
	c.memToken = ""
	c.lock.Unlock()

	ctx = context.WithoutCancel(ctx)
	c.metrics.sessionExpired()
	slog.Info("GATEWAY", "message", "the session is expired, logging out")
	err := c.tokenStore.Clear(ctx)
	if err != nil {
		slog.Error("GATEWAY", "message", "could not clear the token store", "error", err)
	}
	handlers := c.authHandlers()
	if handlers.Logout != nil {
		handlers.Logout(ctx)
	}
}

// IsSessionExpiredError reports whether err is the signal that the session is gone and the user has to log in again.
func IsSessionExpiredError(err error) bool {
	return gwerrors.IsSessionExpired(err)
}

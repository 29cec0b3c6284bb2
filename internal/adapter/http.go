package adapter

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MKhiriev/go-care-keeper/internal/config"
	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/utils"
	"github.com/MKhiriev/go-care-keeper/models"
	"github.com/go-resty/resty/v2"
)

const (
	mutationsPath = "/api/sync/mutations"
	changesPath   = "/api/sync/changes"
	pingPath      = "/api/ping"

	// TraceIDHeader carries the trace id of the request that caused a call.
	TraceIDHeader = "X-Trace-ID"
)

type httpRemoteAuthority struct {
	client *utils.HTTPClient

	hashKey string
	token   string

	logger *logger.Logger
}

// acknowledgement is the 200 body of the mutation endpoint.
type acknowledgement struct {
	ServerVersion int64 `json:"serverVersion"`
}

// conflictBody is the 409 body of the mutation endpoint.
type conflictBody struct {
	ServerRecord *models.ServerRecord `json:"serverRecord"`
}

// NewHTTPRemoteAuthority constructs an HTTP/REST implementation of
// [RemoteAuthority]. It normalises and validates the base URL from
// adapterCfg.HTTPAddress, configures the underlying HTTP client with the
// resolved base URL and request timeout, and initialises the shared HMAC
// hasher pool used for mutation hashes.
//
// Returns an error if adapterCfg.HTTPAddress is empty or cannot be parsed as a
// valid URL.
func NewHTTPRemoteAuthority(adapterCfg config.ClientAdapter, appCfg config.ClientApp, logger *logger.Logger) (RemoteAuthority, error) {
	client := utils.NewHTTPClient()
	baseURL, err := normalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	client.
		SetBaseURL(baseURL).
		SetTimeout(adapterCfg.RequestTimeout)

	client.OnBeforeRequest(propagateTraceID)

	utils.InitHasherPool(appCfg.HashKey)

	token := utils.BareToken(appCfg.Token)
	if token != "" {
		if expired, err := utils.JWTExpired(token, time.Now()); err == nil && expired {
			logger.Warn().
				Str("func", "NewHTTPRemoteAuthority").
				Msg("configured token is expired, the remote authority will reject mutations")
		}
	}

	return &httpRemoteAuthority{
		client:  client,
		hashKey: appCfg.HashKey,
		token:   token,
		logger:  logger,
	}, nil
}

// propagateTraceID forwards the trace id of a status API request to the
// remote authority.
func propagateTraceID(_ *resty.Client, req *resty.Request) error {
	if traceID, ok := utils.GetTraceIDFromContext(req.Context()); ok {
		req.SetHeader(TraceIDHeader, traceID)
	}
	return nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// Send implements [RemoteAuthority]. It signs req.Data with the HMAC hash and
// POSTs it to POST /api/sync/mutations. 200 is an acknowledgement, 409 a
// conflict carrying the server record; everything else is returned as an
// error.
func (h *httpRemoteAuthority) Send(ctx context.Context, req models.MutationRequest) (models.MutationResult, error) {
	req.Hash = h.computeHash(req.Data)

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(mutationsPath)
	if err != nil {
		return models.MutationResult{}, fmt.Errorf("send mutation request: %w", err)
	}

	if resp.StatusCode() == http.StatusConflict {
		var body conflictBody
		if err = json.Unmarshal(resp.Body(), &body); err != nil || body.ServerRecord == nil {
			return models.MutationResult{}, fmt.Errorf("%w: conflict without server record", ErrMalformedResponse)
		}
		return models.MutationResult{Conflict: true, ServerRecord: body.ServerRecord}, nil
	}

	if err = mapHTTPError(resp); err != nil {
		h.logger.Debug().
			Str("func", "httpRemoteAuthority.Send").
			Str("evaluation_id", req.EvaluationID).
			Int("status", resp.StatusCode()).
			Msg("mutation rejected")
		return models.MutationResult{}, err
	}

	var ack acknowledgement
	if err = json.Unmarshal(resp.Body(), &ack); err != nil {
		return models.MutationResult{}, fmt.Errorf("%w: decode acknowledgement: %w", ErrMalformedResponse, err)
	}

	return models.MutationResult{Success: true, ServerVersion: ack.ServerVersion}, nil
}

// PullSince implements [RemoteAuthority]. It GETs
// /api/sync/changes?since=<RFC3339> and decodes the list of remote entities.
func (h *httpRemoteAuthority) PullSince(ctx context.Context, since time.Time) ([]models.RemoteEntity, error) {
	req := h.authedRequest(ctx)
	if !since.IsZero() {
		req.SetQueryParam("since", since.UTC().Format(time.RFC3339Nano))
	}

	resp, err := req.Get(changesPath)
	if err != nil {
		return nil, fmt.Errorf("pull changes request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var items []models.RemoteEntity
	if err = json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, fmt.Errorf("%w: decode changes: %w", ErrMalformedResponse, err)
	}

	return items, nil
}

// Ping implements [RemoteAuthority].
func (h *httpRemoteAuthority) Ping(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get(pingPath)
	if err != nil {
		return fmt.Errorf("ping request: %w", err)
	}
	return mapHTTPError(resp)
}

func (h *httpRemoteAuthority) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if h.token != "" {
		req.SetHeader("Authorization", "Bearer "+h.token)
	}
	return req
}

func (h *httpRemoteAuthority) computeHash(data []byte) string {
	if h.hashKey == "" || len(data) == 0 {
		return ""
	}
	return hex.EncodeToString(utils.Hash(data))
}

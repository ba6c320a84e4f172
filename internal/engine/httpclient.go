package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spec-kit/guest-requests/internal/api/dto"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/reasons"
	"github.com/spec-kit/guest-requests/internal/snapshot"
	"github.com/spec-kit/guest-requests/internal/workflow"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// Client talks to the ticket API. It implements snapshot.Source and Remote.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for baseURL authenticating with a bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchSnapshot implements snapshot.Source. ReceivedAt is left for the
// refresher to stamp.
func (c *Client) FetchSnapshot(ctx context.Context, actorID string) (*snapshot.Snapshot, error) {
	var body dto.Envelope[dto.SnapshotResponse]
	if err := c.do(ctx, http.MethodGet, "/v1/tickets", nil, "", &body); err != nil {
		return nil, err
	}
	snap := &snapshot.Snapshot{
		ActorID:    body.Data.ActorID,
		ServerTime: body.Data.FetchedAt,
		Tickets:    make([]domain.TicketView, 0, len(body.Data.Tickets)),
	}
	if snap.ActorID == "" {
		snap.ActorID = actorID
	}
	for _, v := range body.Data.Tickets {
		snap.Tickets = append(snap.Tickets, v.Domain())
	}
	return snap, nil
}

// Execute implements Remote.
func (c *Client) Execute(ctx context.Context, ticketID string, cmd workflow.Command, idempotencyKey string) (*domain.TicketView, error) {
	route, ok := dto.TransitionRoutes[cmd.Kind]
	if !ok {
		return nil, apperrors.NewValidationError("transition is not callable remotely", map[string]any{"kind": cmd.Kind})
	}
	path := fmt.Sprintf("/v1/tickets/%s/%s", url.PathEscape(ticketID), route)
	var body dto.Envelope[dto.TicketViewResponse]
	if err := c.do(ctx, http.MethodPost, path, dto.NewTransitionRequest(cmd), idempotencyKey, &body); err != nil {
		return nil, err
	}
	view := body.Data.Domain()
	return &view, nil
}

// CreateTicket opens a new ticket.
func (c *Client) CreateTicket(ctx context.Context, req dto.CreateTicketRequest, idempotencyKey string) (*domain.TicketView, error) {
	var body dto.Envelope[dto.TicketViewResponse]
	if err := c.do(ctx, http.MethodPost, "/v1/tickets", req, idempotencyKey, &body); err != nil {
		return nil, err
	}
	view := body.Data.Domain()
	return &view, nil
}

// Events returns a ticket's ordered audit trail.
func (c *Client) Events(ctx context.Context, ticketID string) ([]domain.TicketEvent, error) {
	var body dto.Envelope[[]dto.TicketEventResponse]
	if err := c.do(ctx, http.MethodGet, "/v1/tickets/"+url.PathEscape(ticketID)+"/events", nil, "", &body); err != nil {
		return nil, err
	}
	events := make([]domain.TicketEvent, 0, len(body.Data))
	for _, e := range body.Data {
		events = append(events, e.Domain())
	}
	return events, nil
}

// Catalog fetches the server's active reason catalogs so client-side checks
// match the server's.
func (c *Client) Catalog(ctx context.Context) (reasons.Catalog, error) {
	var cat reasons.Catalog
	fetch := func(path string) ([]domain.Reason, error) {
		var body dto.Envelope[[]dto.ReasonResponse]
		if err := c.do(ctx, http.MethodGet, path, nil, "", &body); err != nil {
			return nil, err
		}
		return reasonRows(body.Data), nil
	}
	var err error
	if cat.Block, err = fetch("/v1/reasons/block"); err != nil {
		return cat, err
	}
	if cat.Unblock, err = fetch("/v1/reasons/unblock"); err != nil {
		return cat, err
	}
	if cat.Cancel, err = fetch("/v1/reasons/cancel"); err != nil {
		return cat, err
	}
	if cat.SLAException, err = fetch("/v1/reasons/sla-exception"); err != nil {
		return cat, err
	}
	cat.Compatibility = make(map[string][]string, len(cat.Block))
	for _, block := range cat.Block {
		var body dto.Envelope[dto.UnblockReasonsResponse]
		if err := c.do(ctx, http.MethodGet, "/v1/reasons/block/"+url.PathEscape(block.Code)+"/unblock", nil, "", &body); err != nil {
			return cat, err
		}
		for _, r := range body.Data.Reasons {
			cat.Compatibility[block.Code] = append(cat.Compatibility[block.Code], r.Code)
		}
	}
	return cat, nil
}

func reasonRows(rows []dto.ReasonResponse) []domain.Reason {
	out := make([]domain.Reason, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Reason{
			Code:             r.Code,
			Kind:             r.Kind,
			Label:            r.Label,
			Icon:             r.Icon,
			RequiresComment:  r.RequiresComment,
			PausesSLA:        r.PausesSLA,
			RequiresResumeAt: r.RequiresResumeAt,
			Active:           true,
			SortOrder:        r.SortOrder,
		})
	}
	return out
}

func (c *Client) do(ctx context.Context, method, path string, in any, idempotencyKey string, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return ctxErr
		}
		return apperrors.NewTransient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewTransient(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// decodeError turns an error envelope back into a DomainError. Any 5xx is
// transient; its code and message are kept as details.
func decodeError(resp *http.Response) error {
	var body dto.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return apperrors.NewTransient(fmt.Errorf("server returned %d %s: %s", resp.StatusCode, body.Error.Code, body.Error.Message))
	}
	if body.Error.Code == "" {
		body.Error.Code = apperrors.CodeInternal
		body.Error.Message = http.StatusText(resp.StatusCode)
	}
	return apperrors.NewDomainError(body.Error.Code, body.Error.Message, resp.StatusCode, body.Error.Details)
}

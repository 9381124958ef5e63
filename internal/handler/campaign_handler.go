package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventline/comms-engine/internal/domain"
	"github.com/eventline/comms-engine/internal/repository"
	"github.com/eventline/comms-engine/internal/service"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100

	// userIDHeader carries the caller identity resolved by the platform
	// gateway in front of this service.
	userIDHeader = "X-User-ID"
)

type CampaignService interface {
	CanSend(ctx context.Context, eventID string) (domain.QuotaStatus, error)
	Send(ctx context.Context, eventID string, sentBy string, input service.SendInput) (*service.SendResult, error)
	Dispatch(ctx context.Context, eventID string, campaignID string) error
	List(ctx context.Context, eventID string, params repository.ListParams) ([]domain.Campaign, int64, error)
	ListRecords(ctx context.Context, eventID string, campaignID string, params repository.ListParams) ([]domain.DispatchRecord, int64, error)
}

type RetryService interface {
	Retry(ctx context.Context, eventID string, campaignID string) (*service.RetryResult, error)
}

type CampaignHandler struct {
	service    CampaignService
	retry      RetryService
	authorizer service.Authorizer
}

func NewCampaignHandler(campaignService CampaignService, retryService RetryService, authorizer service.Authorizer) (*CampaignHandler, error) {
	if campaignService == nil {
		return nil, fmt.Errorf("campaign service is required")
	}
	if retryService == nil {
		return nil, fmt.Errorf("retry service is required")
	}
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	return &CampaignHandler{
		service:    campaignService,
		retry:      retryService,
		authorizer: authorizer,
	}, nil
}

func RegisterCampaignRoutes(router fiber.Router, campaignService CampaignService, retryService RetryService, authorizer service.Authorizer) error {
	h, err := NewCampaignHandler(campaignService, retryService, authorizer)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	communications := v1.Group("/events/:eventId/communications")
	communications.Get("/limit", h.GetQuota)
	communications.Get("/", h.ListCampaigns)
	communications.Post("/send", h.SendCampaign)
	communications.Get("/:campaignId/records", h.ListRecords)
	communications.Post("/:campaignId/retry", h.RetryCampaign)
	communications.Post("/:campaignId/dispatch", h.DispatchCampaign)

	return nil
}

type sendCampaignRequest struct {
	Channel     string     `json:"channel"`
	Subject     string     `json:"subject"`
	Content     string     `json:"content"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

type campaignResponse struct {
	ID                   string     `json:"id"`
	EventID              string     `json:"eventId"`
	SentBy               string     `json:"sentBy"`
	Channel              string     `json:"channel"`
	Subject              string     `json:"subject"`
	Content              string     `json:"content"`
	Status               string     `json:"status"`
	ScheduledAt          *time.Time `json:"scheduledAt,omitempty"`
	TotalRegistrations   int        `json:"totalRegistrations"`
	ValidRecipientsCount int        `json:"validRecipientsCount"`
	ExcludedCount        int        `json:"excludedCount"`
	VirtualExcludedCount int        `json:"virtualExcludedCount"`
	MissingExcludedCount int        `json:"missingExcludedCount"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

type sendCampaignResponse struct {
	Campaign campaignResponse `json:"campaign"`
	Warning  string           `json:"warning,omitempty"`
}

type quotaResponse struct {
	CanSend        bool `json:"canSend"`
	RemainingCount int  `json:"remainingCount"`
	TotalUsed      int  `json:"totalUsed"`
	MaxAllowed     int  `json:"maxAllowed"`
}

type recordResponse struct {
	ID                string     `json:"id"`
	CampaignID        string     `json:"campaignId"`
	RecipientUserID   string     `json:"recipientUserId"`
	Address           string     `json:"address"`
	Status            string     `json:"status"`
	ErrorMessage      *string    `json:"errorMessage,omitempty"`
	ProviderMessageID *string    `json:"providerMessageId,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type listCampaignsResponse struct {
	Data []campaignResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listRecordsResponse struct {
	Data []recordResponse `json:"data"`
	Meta listMeta         `json:"meta"`
}

type listMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type retryResponse struct {
	CampaignID string `json:"campaignId"`
	RetryCount int    `json:"retryCount"`
	Message    string `json:"message,omitempty"`
}

func (h *CampaignHandler) GetQuota(c *fiber.Ctx) error {
	eventID := strings.TrimSpace(c.Params("eventId"))
	if err := h.authorizer.AuthorizeManage(c.Context(), eventID, identityUserID(c)); err != nil {
		return toHTTPError(err)
	}

	status, err := h.service.CanSend(c.Context(), eventID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(quotaResponse{
		CanSend:        status.Allowed,
		RemainingCount: status.Remaining,
		TotalUsed:      status.Used,
		MaxAllowed:     status.Max,
	})
}

func (h *CampaignHandler) SendCampaign(c *fiber.Ctx) error {
	eventID := strings.TrimSpace(c.Params("eventId"))
	userID := identityUserID(c)
	if err := h.authorizer.AuthorizeManage(c.Context(), eventID, userID); err != nil {
		return toHTTPError(err)
	}

	var req sendCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Send(c.Context(), eventID, userID, service.SendInput{
		Channel:     req.Channel,
		Subject:     req.Subject,
		Content:     req.Content,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(sendCampaignResponse{
		Campaign: toCampaignResponse(result.Campaign),
		Warning:  result.Warning,
	})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	eventID := strings.TrimSpace(c.Params("eventId"))
	if err := h.authorizer.AuthorizeManage(c.Context(), eventID, identityUserID(c)); err != nil {
		return toHTTPError(err)
	}

	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	campaigns, total, err := h.service.List(c.Context(), eventID, params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]campaignResponse, 0, len(campaigns))
	for i := range campaigns {
		data = append(data, toCampaignResponse(&campaigns[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listCampaignsResponse{
		Data: data,
		Meta: listMeta{Page: params.Page, Limit: params.PageSize, Total: total},
	})
}

func (h *CampaignHandler) ListRecords(c *fiber.Ctx) error {
	eventID := strings.TrimSpace(c.Params("eventId"))
	campaignID := strings.TrimSpace(c.Params("campaignId"))
	if err := h.authorizer.AuthorizeManage(c.Context(), eventID, identityUserID(c)); err != nil {
		return toHTTPError(err)
	}

	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	records, total, err := h.service.ListRecords(c.Context(), eventID, campaignID, params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]recordResponse, 0, len(records))
	for i := range records {
		data = append(data, toRecordResponse(&records[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listRecordsResponse{
		Data: data,
		Meta: listMeta{Page: params.Page, Limit: params.PageSize, Total: total},
	})
}

func (h *CampaignHandler) RetryCampaign(c *fiber.Ctx) error {
	eventID := strings.TrimSpace(c.Params("eventId"))
	campaignID := strings.TrimSpace(c.Params("campaignId"))
	if err := h.authorizer.AuthorizeManage(c.Context(), eventID, identityUserID(c)); err != nil {
		return toHTTPError(err)
	}

	result, err := h.retry.Retry(c.Context(), eventID, campaignID)
	if err != nil {
		return toHTTPError(err)
	}

	resp := retryResponse{
		CampaignID: campaignID,
		RetryCount: result.Requeued,
	}
	if result.Requeued == 0 {
		resp.Message = "no failed records to retry"
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (h *CampaignHandler) DispatchCampaign(c *fiber.Ctx) error {
	eventID := strings.TrimSpace(c.Params("eventId"))
	campaignID := strings.TrimSpace(c.Params("campaignId"))
	if err := h.authorizer.AuthorizeManage(c.Context(), eventID, identityUserID(c)); err != nil {
		return toHTTPError(err)
	}

	if err := h.service.Dispatch(c.Context(), eventID, campaignID); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"campaignId": campaignID,
		"status":     "enqueued",
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("limit", defaultLimit),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxLimit {
		return repository.ListParams{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxLimit)
	}

	return params, nil
}

func identityUserID(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(userIDHeader))
}

func toCampaignResponse(campaign *domain.Campaign) campaignResponse {
	if campaign == nil {
		return campaignResponse{}
	}

	return campaignResponse{
		ID:                   campaign.ID,
		EventID:              campaign.EventID,
		SentBy:               campaign.SentBy,
		Channel:              campaign.Channel.String(),
		Subject:              campaign.Subject,
		Content:              campaign.Body,
		Status:               campaign.Status.String(),
		ScheduledAt:          campaign.ScheduledAt,
		TotalRegistrations:   campaign.TotalRegistrations,
		ValidRecipientsCount: campaign.ValidRecipientsCount,
		ExcludedCount:        campaign.ExcludedCount,
		VirtualExcludedCount: campaign.VirtualExcludedCount,
		MissingExcludedCount: campaign.MissingExcludedCount,
		CreatedAt:            campaign.CreatedAt,
		UpdatedAt:            campaign.UpdatedAt,
	}
}

func toRecordResponse(record *domain.DispatchRecord) recordResponse {
	if record == nil {
		return recordResponse{}
	}

	return recordResponse{
		ID:                record.ID,
		CampaignID:        record.CampaignID,
		RecipientUserID:   record.RecipientUserID,
		Address:           record.Address,
		Status:            record.Status.String(),
		ErrorMessage:      record.ErrorMessage,
		ProviderMessageID: record.ProviderMessageID,
		SentAt:            record.SentAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrChannelDisabled):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	default:
		return err
	}
}

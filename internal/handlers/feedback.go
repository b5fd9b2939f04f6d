package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"vlm-gateway/internal/middleware"
	"vlm-gateway/internal/models"
	"vlm-gateway/internal/services"
)

type FeedbackHandler struct {
	service        *services.FeedbackService
	maxUploadBytes int64
}

func NewFeedbackHandler(service *services.FeedbackService, maxUploadBytes int64) *FeedbackHandler {
	return &FeedbackHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// SFT godoc
// @Summary     Record SFT feedback
// @Description Stores the image and appends one pass/fail labelled example to the SFT dataset.
// @Description Storage failures are reported with status 200 as {"status": "error", "message": ...}.
// @Tags        feedback
// @Accept      multipart/form-data
// @Produce     json
// @Param       file       formData file   true "Image the response was produced for"
// @Param       query      formData string true "Query"
// @Param       response   formData string true "Model response"
// @Param       model_name formData string true "Model that produced the response"
// @Param       is_pass    formData bool   true "Whether the response passed review"
// @Success     200 {object} models.FeedbackResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /feedback/sft [post]
func (h *FeedbackHandler) SFT(c *gin.Context) {
	if err := parseForm(c, h.maxUploadBytes); err != nil {
		abortBadRequest(c, err)
		return
	}
	img, err := formImage(c, "file")
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	values, err := formValues(c, "query", "response", "model_name")
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	isPass, err := formBool(c, "is_pass")
	if err != nil {
		abortBadRequest(c, err)
		return
	}

	id, err := h.service.RecordSFT(c.Request.Context(), models.SFTSubmission{
		Image:     img,
		Query:     values[0],
		Response:  values[1],
		ModelName: values[2],
		IsPass:    isPass,
	})
	h.respond(c, id, err)
}

// DPO godoc
// @Summary     Record DPO feedback
// @Description Stores the image and appends one chosen/rejected preference pair to the DPO dataset.
// @Description Equal winner and loser model names are accepted.
// @Tags        feedback
// @Accept      multipart/form-data
// @Produce     json
// @Param       file            formData file   true  "Image both responses were produced for"
// @Param       query           formData string true  "Query"
// @Param       response_winner formData string true  "Preferred response"
// @Param       response_loser  formData string true  "Rejected response"
// @Param       model_winner    formData string true  "Model that produced the preferred response"
// @Param       model_loser     formData string true  "Model that produced the rejected response"
// @Param       comment         formData string false "Reviewer comment"
// @Success     200 {object} models.FeedbackResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /feedback/dpo [post]
func (h *FeedbackHandler) DPO(c *gin.Context) {
	if err := parseForm(c, h.maxUploadBytes); err != nil {
		abortBadRequest(c, err)
		return
	}
	img, err := formImage(c, "file")
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	values, err := formValues(c, "query", "response_winner", "response_loser", "model_winner", "model_loser")
	if err != nil {
		abortBadRequest(c, err)
		return
	}

	id, err := h.service.RecordDPO(c.Request.Context(), models.DPOSubmission{
		Image:          img,
		Query:          values[0],
		ResponseWinner: values[1],
		ResponseLoser:  values[2],
		ModelWinner:    values[3],
		ModelLoser:     values[4],
		Comment:        c.PostForm("comment"),
	})
	h.respond(c, id, err)
}

// Stats godoc
// @Summary     Feedback dataset sizes
// @Description Returns the number of recorded SFT and DPO examples.
// @Tags        feedback
// @Produce     json
// @Success     200 {object} models.FeedbackStatsResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /feedback/stats [get]
func (h *FeedbackHandler) Stats(c *gin.Context) {
	stats, err := h.service.Counts(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to count feedback records",
			Message: errorMessage(err),
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *FeedbackHandler) respond(c *gin.Context, id string, err error) {
	if err != nil {
		_ = c.Error(err)
		entry := log.WithField("request_id", middleware.GetRequestID(c)).WithError(err)
		if services.IsLocalIO(err) {
			entry.Error("failed to persist feedback")
		} else {
			entry.Warn("failed to record feedback")
		}
		c.JSON(http.StatusOK, models.FeedbackResponse{Status: "error", Message: errorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, models.FeedbackResponse{Status: "ok", ID: id})
}

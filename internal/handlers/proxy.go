package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"vlm-gateway/internal/backend"
	"vlm-gateway/internal/models"
	"vlm-gateway/internal/proxy"
)

type ProxyHandler struct {
	router         *proxy.Router
	maxUploadBytes int64
}

func NewProxyHandler(router *proxy.Router, maxUploadBytes int64) *ProxyHandler {
	return &ProxyHandler{router: router, maxUploadBytes: maxUploadBytes}
}

// Student godoc
// @Summary     Ask the student model
// @Description Sends the image and query to the student backend.
// @Description Backend failures are returned with status 200 as {"response": "Error: ...", "latency": 0.0}.
// @Tags        inference
// @Accept      multipart/form-data
// @Produce     json
// @Param       file  formData file   true "Image"
// @Param       query formData string true "Question about the image"
// @Success     200 {object} models.ProxyResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /student [post]
func (h *ProxyHandler) Student(c *gin.Context) {
	h.route(c, proxy.RouteStudent)
}

// Teacher godoc
// @Summary     Ask the teacher model
// @Description Sends the image and query to the teacher backend with the structured-output prompt suffix.
// @Description Backend failures are returned with status 200 as {"response": "Error: ...", "latency": 0.0}.
// @Tags        inference
// @Accept      multipart/form-data
// @Produce     json
// @Param       file  formData file   true "Image"
// @Param       query formData string true "Question about the image"
// @Success     200 {object} models.ProxyResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /teacher [post]
func (h *ProxyHandler) Teacher(c *gin.Context) {
	h.route(c, proxy.RouteTeacher)
}

func (h *ProxyHandler) route(c *gin.Context, name proxy.RouteName) {
	req, err := h.readRequest(c, "query")
	if err != nil {
		abortBadRequest(c, err)
		return
	}

	result := h.router.Route(c.Request.Context(), name, req)
	if !result.OK() {
		_ = c.Error(result.Err)
		c.JSON(http.StatusOK, models.ProxyResponse{
			Response: "Error: " + result.Err.Message(),
			Latency:  0.0,
		})
		return
	}

	c.JSON(http.StatusOK, models.ProxyResponse{
		Response: result.Text,
		Latency:  result.LatencySeconds(),
	})
}

// Inference godoc
// @Summary     Raw inference passthrough
// @Description Forwards the image and prompt to the default backend and returns its reply untouched.
// @Description A non-200 backend reply is returned with the same status as {"detail": "<backend body>"}.
// @Tags        inference
// @Accept      multipart/form-data
// @Produce     json
// @Param       file   formData file   true "Image"
// @Param       prompt formData string true "Prompt"
// @Success     200 {object} object
// @Failure     400 {object} models.ErrorResponse
// @Failure     503 {object} models.DetailResponse
// @Router      /inference [post]
func (h *ProxyHandler) Inference(c *gin.Context) {
	req, err := h.readRequest(c, "prompt")
	if err != nil {
		abortBadRequest(c, err)
		return
	}

	raw, berr := h.router.Passthrough(c.Request.Context(), req)
	if berr != nil {
		h.detail(c, berr)
		return
	}
	c.Data(raw.StatusCode, contentType(raw), raw.Body)
}

// Stats godoc
// @Summary     Backend statistics
// @Description Returns the default backend's /stats document unchanged.
// @Tags        inference
// @Produce     json
// @Success     200 {object} object
// @Failure     503 {object} models.DetailResponse
// @Router      /stats [get]
func (h *ProxyHandler) Stats(c *gin.Context) {
	raw, berr := h.router.Stats(c.Request.Context())
	if berr != nil {
		h.detail(c, berr)
		return
	}
	c.Data(raw.StatusCode, contentType(raw), raw.Body)
}

func (h *ProxyHandler) readRequest(c *gin.Context, textField string) (backend.NormalizedRequest, error) {
	if err := parseForm(c, h.maxUploadBytes); err != nil {
		return backend.NormalizedRequest{}, err
	}
	img, err := formImage(c, "file")
	if err != nil {
		return backend.NormalizedRequest{}, err
	}
	values, err := formValues(c, textField)
	if err != nil {
		return backend.NormalizedRequest{}, err
	}
	return normalizedRequest(img, values[0]), nil
}

func (h *ProxyHandler) detail(c *gin.Context, berr *backend.Error) {
	_ = c.Error(berr)
	switch berr.Kind {
	case backend.ErrBackendError:
		c.JSON(berr.StatusCode, models.DetailResponse{Detail: berr.Body})
	case backend.ErrBadRequest:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: string(berr.Kind), Message: berr.Message()})
	default:
		c.JSON(http.StatusServiceUnavailable, models.DetailResponse{Detail: berr.Message()})
	}
}

func contentType(raw backend.RawResponse) string {
	if raw.ContentType == "" {
		return "application/json"
	}
	return raw.ContentType
}

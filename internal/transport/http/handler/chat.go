package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gemmachat/internal/ai"
	"gemmachat/internal/app"
	"gemmachat/internal/transport/http/middleware"
	"gemmachat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatRequest struct {
	Message      string `json:"message"`
	SystemPrompt string `json:"system_prompt"`
	Stream       bool   `json:"stream"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid session context")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	input := app.ChatInput{
		User:         user,
		Message:      req.Message,
		SystemPrompt: req.SystemPrompt,
	}

	// validation failures are plain 400s on both paths; once the event
	// stream is open, failures become error frames instead
	if err := h.chatService.Validate(input); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.Stream {
		h.streamChat(c, input)
		return
	}

	text, err := h.chatService.Complete(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMessageEmpty), errors.Is(err, app.ErrBadEncoding):
			response.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, ai.ErrUnavailable):
			response.Error(c, http.StatusServiceUnavailable, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Response: text})
}

// errClientGone marks a failed write to the consumer; production stops and
// no error frame is attempted on a dead transport.
var errClientGone = errors.New("client disconnected")

// streamChat relays the model's delta sequence as server-sent events: one
// data frame per chunk, flushed immediately, the terminal done chunk
// forwarded as the last frame. Any failure after the stream opens produces
// exactly one error frame and ends the stream.
func (h *ChatHandler) streamChat(c *gin.Context, input app.ChatInput) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "streaming not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeFrame := func(payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return errClientGone
		}
		flusher.Flush()
		return nil
	}

	err := h.chatService.Stream(c.Request.Context(), input, func(chunk ai.StreamChunk) error {
		return writeFrame(chunk)
	})
	if err == nil {
		return
	}
	if errors.Is(err, errClientGone) || c.Request.Context().Err() != nil {
		return
	}

	message := "internal server error"
	if errors.Is(err, ai.ErrUnavailable) {
		message = flattenFrameText(err.Error())
	}
	_ = writeFrame(gin.H{"error": message})
}

// flattenFrameText keeps an error message single-line so it cannot break
// the data-frame layout of the event stream.
func flattenFrameText(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}

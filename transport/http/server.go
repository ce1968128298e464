package httptransport

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-noticast/assets"
	"github.com/goliatone/go-noticast/core"
	"github.com/goliatone/go-noticast/inbound"
)

const (
	RouteMessages = "/messages"
	RouteMail     = "/mail"
	RouteHealth   = "/healthz"

	HeaderStage = "X-Noticast-Stage"

	ErrorAssetUnavailable = "ASSET_UNAVAILABLE"
)

// MailQueue accepts mail events for deferred processing.
type MailQueue interface {
	EnqueueEvent(ctx context.Context, event inbound.MailEvent) error
}

// AssetSource serves signed audio links.
type AssetSource interface {
	Verify(key string, expires string, signature string) error
	Open(key string) ([]byte, string, error)
}

type Server struct {
	app       *fiber.App
	router    *inbound.Router
	queue     MailQueue
	assets    AssetSource
	assetPath string
	logger    core.Logger

	trustStageHeader bool
}

type Option func(*Server)

func WithMailQueue(queue MailQueue) Option {
	return func(s *Server) {
		s.queue = queue
	}
}

func WithAssets(source AssetSource, routePath string) Option {
	return func(s *Server) {
		s.assets = source
		if strings.TrimSpace(routePath) != "" {
			s.assetPath = strings.TrimRight(routePath, "/")
		}
	}
}

// WithTrustedStageHeader lets callers pick the execution stage with
// HeaderStage. Only enable it behind a gateway that strips the header from
// untrusted traffic.
func WithTrustedStageHeader() Option {
	return func(s *Server) {
		s.trustStageHeader = true
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds the fiber app. Errors returned by handlers are rendered by
// ErrorHandler so every failure shares one JSON envelope.
func New(router *inbound.Router, opts ...Option) *Server {
	s := &Server{
		router:    router,
		assetPath: assets.DefaultRoutePath,
		logger:    glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "noticast",
		DisableStartupMessage: true,
		ErrorHandler:          s.ErrorHandler,
	})
	s.register()
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) register() {
	s.app.Get(RouteHealth, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	s.app.Post(RouteMessages, s.postMessage)
	s.app.Post(RouteMail, s.postMail)
	if s.assets != nil {
		s.app.Get(s.assetPath+"/:key", s.getAsset)
	}
}

// postMessage answers a synchronous dispatch. The publish gate stage comes
// from the router; the stage header is read only when the server was built
// WithTrustedStageHeader.
func (s *Server) postMessage(c *fiber.Ctx) error {
	if s.router == nil {
		return httpInternal("httptransport: router is not configured")
	}
	req, err := inbound.DecodeSynchronousRequest(append([]byte(nil), c.Body()...))
	if err != nil {
		return err
	}

	router := s.router
	if s.trustStageHeader {
		if stage := strings.TrimSpace(c.Get(HeaderStage)); stage != "" {
			scoped := *s.router
			scoped.Stage = stage
			router = &scoped
		}
	}
	result, err := router.Route(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(result.Envelope)
}

// postMail accepts either a raw mail trigger payload or a single message. When
// a queue is configured the messages are deferred and 202 is returned.
func (s *Server) postMail(c *fiber.Ctx) error {
	if s.router == nil {
		return httpInternal("httptransport: router is not configured")
	}
	event, err := inbound.DecodeEvent(append([]byte(nil), c.Body()...))
	if err != nil {
		return err
	}
	mail, ok := event.(inbound.MailEvent)
	if !ok {
		return httpBadInput("httptransport: payload is not a mail event")
	}

	ctx := c.UserContext()
	if s.queue != nil {
		if err := s.queue.EnqueueEvent(ctx, mail); err != nil {
			return err
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": len(mail.Messages)})
	}

	result, err := s.router.Route(ctx, mail)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"results": mailResults(result.Mail)})
}

func (s *Server) getAsset(c *fiber.Ctx) error {
	key := c.Params("key")
	err := s.assets.Verify(key, c.Query(assets.QueryExpires), c.Query(assets.QuerySignature))
	switch {
	case errors.Is(err, assets.ErrLinkExpired), errors.Is(err, assets.ErrInvalidSignature):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, assets.ErrInvalidKey):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}

	data, contentType, err := s.assets.Open(key)
	if err != nil {
		if errors.Is(err, assets.ErrAssetNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=60")
	return c.Status(fiber.StatusOK).Send(data)
}

// ErrorHandler renders fiber and go-errors failures as a JSON envelope.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(errorBody{Error: errorDetail{
			Category: categoryForStatus(fiberErr.Code),
			Code:     fiberErr.Code,
			TextCode: textCodeForStatus(fiberErr.Code),
			Message:  fiberErr.Message,
		}})
	}

	mapped := core.MapError(err)
	if mapped.Code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"category", mapped.Category.String(),
			"error", err,
		)
	}
	return c.Status(mapped.Code).JSON(errorBody{Error: errorDetail{
		Category: mapped.Category.String(),
		Code:     mapped.Code,
		TextCode: mapped.TextCode,
		Message:  mapped.Message,
		Metadata: mapped.Metadata,
	}})
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Category string         `json:"category"`
	Code     int            `json:"code"`
	TextCode string         `json:"text_code"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type mailTargetBody struct {
	Target  string `json:"target"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

type mailResultBody struct {
	MessageID string           `json:"message_id,omitempty"`
	Subject   string           `json:"subject"`
	Skipped   bool             `json:"skipped"`
	Reason    string           `json:"reason,omitempty"`
	Deduped   bool             `json:"deduped,omitempty"`
	Targets   []mailTargetBody `json:"targets"`
}

func mailResults(results []inbound.MailResult) []mailResultBody {
	out := make([]mailResultBody, 0, len(results))
	for _, result := range results {
		body := mailResultBody{
			MessageID: result.MessageID,
			Subject:   result.Subject,
			Skipped:   result.Skipped,
			Reason:    result.Reason,
			Deduped:   result.Deduped,
			Targets:   make([]mailTargetBody, 0, len(result.Targets)),
		}
		for _, target := range result.Targets {
			item := mailTargetBody{Target: target.Target, Outcome: string(target.Outcome)}
			if target.Err != nil {
				item.Error = target.Err.Error()
			}
			body.Targets = append(body.Targets, item)
		}
		out = append(out, body)
	}
	return out
}

func categoryForStatus(status int) string {
	switch {
	case status == fiber.StatusNotFound:
		return goerrors.CategoryNotFound.String()
	case status == fiber.StatusForbidden:
		return goerrors.CategoryAuthz.String()
	case status >= 400 && status < 500:
		return goerrors.CategoryBadInput.String()
	default:
		return goerrors.CategoryInternal.String()
	}
}

func textCodeForStatus(status int) string {
	switch {
	case status == fiber.StatusNotFound, status == fiber.StatusForbidden:
		return ErrorAssetUnavailable
	case status >= 400 && status < 500:
		return core.ErrorBadInput
	default:
		return core.ErrorInternal
	}
}

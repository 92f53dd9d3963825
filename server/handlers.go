package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"gamesmith/apperr"
	"gamesmith/core"
	"gamesmith/llm"
	"gamesmith/logger"
	"gamesmith/metrics"
	"gamesmith/project"
	"gamesmith/version"
)

// GameEngine is the slice of the core engine the handlers consume.
type GameEngine interface {
	ProcessMessage(ctx context.Context, gameName, message string) core.Response
	ClassifyMessage(ctx context.Context, message string) (llm.Classification, error)
	Answer(ctx context.Context, gameName, question string) (string, error)
	Restore(gameName, versionName string) (bool, error)
	Revert(gameName string) (string, bool, error)
	CurrentVersion(gameName string) (version.Record, error)
	SnapshotLog(gameName string) (version.Log, error)
	Chat(gameName string) []project.ChatEntry
	Spec(gameName string) (string, error)
	GameData(gameName string) (map[string]interface{}, error)
	UpdateData(gameName string, data map[string]interface{}) error
	ApplyInterviewAnswers(ctx context.Context, gameName string, answers core.InterviewAnswers) (string, error)
	SpecChat(ctx context.Context, gameName, message string) (string, error)
	ListAssets(gameName string) (core.AssetListing, error)
	ReadAsset(gameName, name string) ([]byte, error)
	ReplaceAsset(gameName, oldName, assetType, uploadName string, content []byte) (string, error)
	ReportClientError(gameName, report string) error
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	engine  GameEngine
	metrics *metrics.Metrics
	logger  logger.Logger
}

func NewHandlers(engine GameEngine, m *metrics.Metrics, l logger.Logger) *Handlers {
	if l == nil {
		l = logger.NewNullLogger()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Handlers{engine: engine, metrics: m, logger: l}
}

// Health handles GET /.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// requireGameName validates the game name from a body or query; an
// empty or malformed name is rejected before it can reach the
// filesystem layer. When it reports false the 400 response has
// already been written.
func requireGameName(c *fiber.Ctx, name string) (string, bool) {
	if !project.IsValidName(name) {
		_ = c.Status(fiber.StatusBadRequest).JSON(failure("game_name must be a short alphanumeric identifier"))
		return "", false
	}
	return name, true
}

// ProcessCode handles POST /process-code, the main chat turn.
func (h *Handlers) ProcessCode(c *fiber.Ctx) error {
	var req ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("invalid request body: " + err.Error()))
	}
	name, ok := requireGameName(c, req.GameName)
	if !ok {
		return nil
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(failure("message is required"))
	}

	resp := h.engine.ProcessMessage(c.Context(), name, req.Message)
	return c.JSON(resp)
}

// Category handles POST /category: classification only, no routing
// and no side effects on the project.
func (h *Handlers) Category(c *fiber.Ctx) error {
	var req CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("invalid request body: " + err.Error()))
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(failure("message is required"))
	}

	cls, err := h.engine.ClassifyMessage(c.Context(), req.Message)
	if err != nil {
		h.logger.WithField("error", err).Error("classification failed")
		return c.Status(fiber.StatusInternalServerError).JSON(failure("could not classify the message"))
	}
	return c.JSON(cls)
}

// Answer handles POST /answer: answer a question about the project
// without running a full chat turn.
func (h *Handlers) Answer(c *fiber.Ctx) error {
	var req AnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("invalid request body: " + err.Error()))
	}
	name, ok := requireGameName(c, req.GameName)
	if !ok {
		return nil
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(failure("question is required"))
	}

	answer, err := h.engine.Answer(c.Context(), name, req.Question)
	if err != nil {
		h.logger.WithField("error", err).Error("answer failed")
		return c.Status(fiber.StatusInternalServerError).JSON(failure("could not answer the question"))
	}
	return c.JSON(ReplyResponse{Status: "success", Reply: answer})
}

// RestoreVersion handles POST /restore-version.
func (h *Handlers) RestoreVersion(c *fiber.Ctx) error {
	var req RestoreRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("invalid request body: " + err.Error()))
	}
	name, ok := requireGameName(c, req.GameName)
	if !ok {
		return nil
	}
	if req.Version == "" {
		return c.Status(fiber.StatusBadRequest).JSON(failure("version is required"))
	}

	ok, err := h.engine.Restore(name, req.Version)
	if err != nil {
		h.logger.WithField("error", err).Error("restore failed")
		return c.Status(fiber.StatusInternalServerError).JSON(failure("restore failed"))
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(failure(fmt.Sprintf("version '%s' not found", req.Version)))
	}
	return c.JSON(ReplyResponse{Status: "success", Reply: fmt.Sprintf("Restored version %s.", req.Version)})
}

// Revert handles POST /revert.
func (h *Handlers) Revert(c *fiber.Ctx) error {
	var req RevertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("invalid request body: " + err.Error()))
	}
	name, ok := requireGameName(c, req.GameName)
	if !ok {
		return nil
	}

	reply, ok, err := h.engine.Revert(name)
	if err != nil {
		h.logger.WithField("error", err).Error("revert failed")
		return c.Status(fiber.StatusInternalServerError).JSON(failure("revert failed"))
	}
	status := "success"
	if !ok {
		status = "fail"
	}
	return c.JSON(ReplyResponse{Status: status, Reply: reply})
}

// SnapshotLog handles GET /snapshot-log.
func (h *Handlers) SnapshotLog(c *fiber.Ctx) error {
	name, ok := requireGameName(c, c.Query("game_name"))
	if !ok {
		return nil
	}
	lg, err := h.engine.SnapshotLog(name)
	if err != nil {
		h.logger.WithField("error", err).Error("snapshot log read failed")
		return c.Status(fiber.StatusInternalServerError).JSON(failure("could not read snapshot log"))
	}
	return c.JSON(lg)
}

// CurrentVersion handles GET /current-version.
func (h *Handlers) CurrentVersion(c *fiber.Ctx) error {
	name, ok := requireGameName(c, c.Query("game_name"))
	if !ok {
		return nil
	}
	rec, err := h.engine.CurrentVersion(name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure("could not read current version"))
	}
	return c.JSON(rec)
}

// LoadChat handles GET /load-chat. The transcript is best effort and
// never fails the request.
func (h *Handlers) LoadChat(c *fiber.Ctx) error {
	name, ok := requireGameName(c, c.Query("game_name"))
	if !ok {
		return nil
	}
	return c.JSON(h.engine.Chat(name))
}

// Spec handles GET /spec.
func (h *Handlers) Spec(c *fiber.Ctx) error {
	name, ok := requireGameName(c, c.Query("game_name"))
	if !ok {
		return nil
	}
	spec, err := h.engine.Spec(name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure("could not read specification"))
	}
	return c.JSON(fiber.Map{"spec": spec})
}

// GameData handles GET /game-data.
func (h *Handlers) GameData(c *fiber.Ctx) error {
	name, ok := requireGameName(c, c.Query("game_name"))
	if !ok {
		return nil
	}
	data, err := h.engine.GameData(name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure("could not read game data"))
	}
	return c.JSON(data)
}

// DataUpdate handles POST /data-update.
func (h *Handlers) DataUpdate(c *fiber.Ctx) error {
	var req DataUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("invalid request body: " + err.Error()))
	}
	name, ok := requireGameName(c, req.GameName)
	if !ok {
		return nil
	}
	if req.Data == nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("data is required"))
	}
	if err := h.engine.UpdateData(name, req.Data); err != nil {
		h.logger.WithField("error", err).Error("data update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(failure("data update failed"))
	}
	return c.JSON(ReplyResponse{Status: "success", Reply: "Game data updated."})
}

// QnA handles POST /qna.
func (h *Handlers) QnA(c *fiber.Ctx) error {
	var req QnARequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("invalid request body: " + err.Error()))
	}
	name, ok := requireGameName(c, req.GameName)
	if !ok {
		return nil
	}
	reply, err := h.engine.ApplyInterviewAnswers(c.Context(), name, req.Answers)
	if err != nil {
		h.logger.WithField("error", err).Error("spec update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(failure("specification update failed"))
	}
	return c.JSON(ReplyResponse{Status: "success", Reply: reply})
}

// SpecQuestion handles POST /spec-question.
func (h *Handlers) SpecQuestion(c *fiber.Ctx) error {
	var req SpecQuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("invalid request body: " + err.Error()))
	}
	name, ok := requireGameName(c, req.GameName)
	if !ok {
		return nil
	}
	reply, err := h.engine.SpecChat(c.Context(), name, req.Message)
	if err != nil {
		h.logger.WithField("error", err).Error("spec question failed")
		return c.Status(fiber.StatusInternalServerError).JSON(failure("could not answer"))
	}
	return c.JSON(ReplyResponse{Status: "success", Reply: reply})
}

// Assets handles GET /assets: filenames plus the static URLs the
// frontend loads them from.
func (h *Handlers) Assets(c *fiber.Ctx) error {
	name, ok := requireGameName(c, c.Query("game_name"))
	if !ok {
		return nil
	}
	listing, err := h.engine.ListAssets(name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure("could not list assets"))
	}

	type assetRef struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	images := make([]assetRef, 0, len(listing.Images))
	for _, img := range listing.Images {
		images = append(images, assetRef{Name: img, URL: fmt.Sprintf("/static/%s/%s", name, img)})
	}
	sounds := make([]assetRef, 0, len(listing.Sounds))
	for _, snd := range listing.Sounds {
		sounds = append(sounds, assetRef{Name: snd, URL: fmt.Sprintf("/static/%s/%s", name, snd)})
	}
	return c.JSON(fiber.Map{"images": images, "sounds": sounds})
}

// StaticAsset handles GET /static/:game_name/:file.
func (h *Handlers) StaticAsset(c *fiber.Ctx) error {
	name, ok := requireGameName(c, c.Params("game_name"))
	if !ok {
		return nil
	}
	file, uerr := url.PathUnescape(c.Params("file"))
	if uerr != nil {
		return c.Status(fiber.StatusNotFound).JSON(failure("asset not found"))
	}
	content, err := h.engine.ReadAsset(name, file)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(failure("asset not found"))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(failure("could not read asset"))
	}
	c.Set(fiber.HeaderContentType, contentTypeFor(file))
	return c.Send(content)
}

// ReplaceAsset handles POST /replace-asset multipart uploads.
func (h *Handlers) ReplaceAsset(c *fiber.Ctx) error {
	name, ok := requireGameName(c, c.FormValue("game_name"))
	if !ok {
		return nil
	}
	oldName := c.FormValue("old_name")
	assetType := c.FormValue("type")
	fileHeader, ferr := c.FormFile("file")
	if ferr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("file is required"))
	}
	content, ferr := readUpload(fileHeader)
	if ferr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("could not read upload"))
	}

	newName, err := h.engine.ReplaceAsset(name, oldName, assetType, fileHeader.Filename, content)
	if err != nil {
		if apperr.IsStorage(err) {
			h.logger.WithField("error", err).Error("asset replace failed")
			return c.Status(fiber.StatusInternalServerError).JSON(failure("could not store asset"))
		}
		return c.Status(fiber.StatusBadRequest).JSON(failure(err.Error()))
	}
	return c.JSON(fiber.Map{"status": "success", "name": newName, "url": fmt.Sprintf("/static/%s/%s", name, newName)})
}

// ClientError handles POST /client-error.
func (h *Handlers) ClientError(c *fiber.Ctx) error {
	var req ClientErrorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure("invalid request body: " + err.Error()))
	}
	name, ok := requireGameName(c, req.GameName)
	if !ok {
		return nil
	}
	if strings.TrimSpace(req.Error) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(failure("error is required"))
	}
	if err := h.engine.ReportClientError(name, "The game reported a runtime error:\n"+req.Error); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure("could not record error"))
	}
	return c.JSON(ReplyResponse{Status: "success", Reply: "Error recorded."})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

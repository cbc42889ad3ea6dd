package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"NutriLens/internal/database"
	"NutriLens/internal/nutrition"
	"NutriLens/internal/utility"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

const (
	headerModel    = "X-AI-Model"
	headerFallback = "X-AI-Fallback"

	defaultImageMime = "image/jpeg"
	persistTimeout   = 3 * time.Second
)

var (
	errNoImage        = errors.New("image is required")
	errImageEncoding  = errors.New("image must be base64 or a data URI")
	errMessageMissing = errors.New("message is required")
)

type analyzeRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
	Context  string `json:"context"`
}

type chatRequest struct {
	Message string `json:"message"`
	Context string `json:"context"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// analyzeHandler accepts a multipart "image" field or a JSON body and always
// answers 200 with a NutritionEstimate once an image was supplied.
func (s *Server) analyzeHandler(c echo.Context) error {
	image, declaredMime, contextText, err := readImageInput(c)
	if err != nil {
		return badRequest(c, err)
	}

	ctx := c.Request().Context()
	mimeType := resolveImageMime(image, declaredMime)
	zerolog.Ctx(ctx).Info().Int("bytes", len(image)).Str("mime", mimeType).Msg("Analyzing food image")

	res := s.nutrition.AnalyzeImage(ctx, image, mimeType, contextText)

	if userID, err := utility.GetUserIDFromContext(c); err == nil && s.db != nil {
		s.persistAnalysis(ctx, userID, res)
	}

	if res.Model != "" {
		c.Response().Header().Set(headerModel, res.Model)
	}
	c.Response().Header().Set(headerFallback, strconv.FormatBool(res.Fallback))
	return c.JSON(http.StatusOK, res.Estimate)
}

// persistAnalysis is best effort: a storage failure never changes the response.
func (s *Server) persistAnalysis(ctx context.Context, userID string, res nutrition.Analysis) {
	logger := zerolog.Ctx(ctx)

	raw, err := json.Marshal(res.Estimate)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal estimate for storage")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	saved, err := s.db.Queries().CreateNutritionAnalysis(ctx, database.CreateNutritionAnalysisParams{
		UserID:   userID,
		Model:    res.Model,
		Fallback: res.Fallback,
		Estimate: raw,
	})
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("Failed to store nutrition analysis")
		return
	}
	logger.Debug().Str("analysis_id", saved.ID).Msg("Stored nutrition analysis")
}

func (s *Server) chatHandler(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, errMessageMissing)
	}
	if strings.TrimSpace(req.Message) == "" {
		return badRequest(c, errMessageMissing)
	}

	reply := s.nutrition.Chat(c.Request().Context(), req.Message, req.Context)

	if reply.Model != "" {
		c.Response().Header().Set(headerModel, reply.Model)
	}
	c.Response().Header().Set(headerFallback, strconv.FormatBool(reply.Fallback))
	return c.JSON(http.StatusOK, chatResponse{Response: reply.Response})
}

func (s *Server) listAnalysesHandler(c echo.Context) error {
	if s.db == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "analysis history is not enabled on this server"})
	}

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	ctx := c.Request().Context()

	items, err := s.db.Queries().ListNutritionAnalyses(ctx, userID, limit)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("Failed to list nutrition analyses")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not load analysis history"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"analyses": items})
}

// healthHandler reports service, database and host status.
func (s *Server) healthHandler(c echo.Context) error {
	ctx := c.Request().Context()

	dbStats := map[string]string{"status": "disabled"}
	if s.db != nil {
		dbStats = s.db.Health(ctx)
	}

	system := map[string]interface{}{
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	}
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		system["memory_used_percent"] = fmt.Sprintf("%.2f%%", v.UsedPercent)
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		system["cpu_usage"] = fmt.Sprintf("%.2f%%", pct[0])
	}
	if hInfo, err := host.InfoWithContext(ctx); err == nil {
		system["os"] = hInfo.OS
		system["platform"] = hInfo.Platform
		system["hostname"] = hInfo.Hostname
	}

	status := "ok"
	if dbStats["status"] == "down" {
		status = "degraded"
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        status,
		"ai_configured": s.cfg.AIConfigured(),
		"language":      s.nutrition.Language(),
		"database":      dbStats,
		"system":        system,
	})
}

// readImageInput pulls the image bytes from either a multipart form or a JSON body.
func readImageInput(c echo.Context) (image []byte, mimeType, contextText string, err error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, ferr := c.FormFile("image")
		if ferr != nil {
			return nil, "", "", errNoImage
		}
		f, ferr := fh.Open()
		if ferr != nil {
			return nil, "", "", errNoImage
		}
		defer f.Close()

		image, err = io.ReadAll(f)
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to read image: %w", err)
		}
		if len(image) == 0 {
			return nil, "", "", errNoImage
		}
		return image, fh.Header.Get(echo.HeaderContentType), c.FormValue("context"), nil
	}

	var body analyzeRequest
	if err := c.Bind(&body); err != nil {
		return nil, "", "", errNoImage
	}
	image, mimeType, err = decodeImageString(body.Image)
	if err != nil {
		return nil, "", "", err
	}
	if mimeType == "" {
		mimeType = body.MimeType
	}
	return image, mimeType, body.Context, nil
}

// decodeImageString accepts plain base64 or a "data:<mime>;base64,<data>" URI.
func decodeImageString(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", errNoImage
	}

	var mimeType string
	if strings.HasPrefix(s, "data:") {
		header, data, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", errImageEncoding
		}
		mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		s = data
	}

	image, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		image, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, "", errImageEncoding
	}
	if len(image) == 0 {
		return nil, "", errNoImage
	}
	return image, mimeType, nil
}

// resolveImageMime prefers the sniffed type, then the declared one, then JPEG.
func resolveImageMime(image []byte, declared string) string {
	detected := mimetype.Detect(image)
	if strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return defaultImageMime
}

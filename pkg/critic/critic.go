// Package critic asks a vision model to review a rendered diagram.
//
// Critique is total: it returns either non-empty feedback text or "" when no
// usable feedback could be obtained. Errors never cross this boundary.
package critic

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/inference"
	"github.com/alessiagatto/documenter-agent/pkg/inference/llmerrors"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
)

// NoFeedback is the sentinel for "no usable feedback".
const NoFeedback = ""

const genericPrompt = "Analyze this UML diagram. Identify layout problems, duplicated elements, " +
	"alignment issues, and visual inconsistencies. Answer in short plain sentences."

//nolint:gochecknoglobals // read-only prompt table
var prompts = map[string]string{
	"sequence_diagram": "Analyze this UML sequence diagram. Check whether participants read left to right " +
		"in the order they first interact, whether any participant or message is duplicated, whether " +
		"messages are evenly spaced and their labels aligned, and whether the lifelines are cramped. " +
		"Answer in short plain sentences naming each problem.",
	"component_diagram": "Analyze this UML component diagram. Identify overlapping or crossing connectors, " +
		"duplicated components, uneven spacing between components, and misaligned boxes. " +
		"Answer in short plain sentences naming each problem.",
	"deployment_diagram": "Analyze this UML deployment diagram. Check that every component sits inside a " +
		"node, that no component appears twice, that nodes are evenly spaced, and that connections do " +
		"not cross unnecessarily. Answer in short plain sentences naming each problem.",
	"context_diagram": "Analyze this system context diagram. Check that the system is clearly central, that " +
		"actors and external systems are distinguishable, that no element is duplicated, and that the " +
		"layout flows left to right. Answer in short plain sentences naming each problem.",
	"security_diagram": "Analyze this security architecture diagram. Check that trust boundaries are visible, " +
		"that each control is clearly attached to what it protects, that no element is duplicated, and " +
		"that spacing and alignment are consistent. Answer in short plain sentences naming each problem.",
}

// Prompt returns the review prompt for a diagram type, falling back to a
// generic prompt for unknown types.
func Prompt(diagramType string) string {
	if p, ok := prompts[diagramType]; ok {
		return p
	}
	return genericPrompt
}

// Critic sends rendered diagrams to a vision model.
type Critic struct {
	client      inference.Client
	logger      *logx.Logger
	temperature float64
	maxTokens   int
}

// New creates a critic over an inference client.
func New(client inference.Client, temperature float64, maxTokens int) *Critic {
	return &Critic{
		client:      client,
		logger:      logx.NewLogger("critic"),
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// NewFromConfig builds the inference client described by cfg.
func NewFromConfig(cfg config.InferenceConfig, middleware ...inference.Middleware) (*Critic, error) {
	client, err := inference.NewClient(cfg, middleware...)
	if err != nil {
		return nil, err
	}
	return New(client, cfg.Temperature, cfg.MaxTokens), nil
}

// Critique reads the image at imagePath and returns the model's review.
func (c *Critic) Critique(ctx context.Context, imagePath, diagramType string) string {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		c.logger.Warn("cannot read %s image for critique: %v", diagramType, err)
		return NoFeedback
	}
	return c.CritiqueImage(ctx, image, MIMEType(imagePath), diagramType)
}

// CritiqueImage reviews image bytes. Exactly one request is made.
func (c *Critic) CritiqueImage(ctx context.Context, image []byte, mimeType, diagramType string) string {
	if len(image) == 0 {
		c.logger.Warn("empty %s image, skipping critique", diagramType)
		return NoFeedback
	}

	reply, err := c.client.Describe(ctx, inference.VisionRequest{
		Prompt:      Prompt(diagramType),
		Image:       image,
		MIMEType:    mimeType,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.logger.Warn("vision critique for %s unavailable (%s), keeping first-pass diagram",
			diagramType, llmerrors.TypeOf(err))
		return NoFeedback
	}

	feedback := strings.TrimSpace(reply)
	if feedback == "" {
		c.logger.Warn("vision critique for %s returned no text", diagramType)
		return NoFeedback
	}
	return feedback
}

// MIMEType guesses an image MIME type from the file extension.
func MIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return inference.DefaultImageMIMEType
	}
}

// Package builder produces runtime images from a base image.
package builder

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/sirupsen/logrus"

	"github.com/rickgorman/sandboxrt/pkg/hash"
)

// Repository is the image repository runtime images are tagged under.
const Repository = "sandboxrt/runtime"

// Engine is the subset of the container engine the builder needs.
type Engine interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
	BuildImage(ctx context.Context, buildContext io.Reader, opts types.ImageBuildOptions) error
}

// Request describes a runtime image.
type Request struct {
	BaseImage string
	ExtraDeps string
	Platform  string

	// Force rebuilds even when the tag already exists.
	Force bool

	// BuildArgs are KEY=VALUE pairs passed to the build.
	BuildArgs []string
}

// Builder builds runtime images through an Engine.
type Builder struct {
	engine Engine
	log    *logrus.Entry
}

// New returns a Builder. A nil log uses the standard logger.
func New(engine Engine, log *logrus.Entry) *Builder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Builder{engine: engine, log: log.WithField("component", "builder")}
}

// Tag returns the deterministic image reference for req.
func Tag(req Request) string {
	return Repository + ":oh_" + hash.Parts(req.BaseImage, req.ExtraDeps, req.Platform)[:16]
}

// Build returns the image reference for req, building it if it does not exist
// locally or if req.Force is set.
func (b *Builder) Build(ctx context.Context, req Request) (string, error) {
	if req.BaseImage == "" {
		return "", errors.New("base image is required")
	}

	ref := Tag(req)
	log := b.log.WithFields(logrus.Fields{"image": ref, "base": req.BaseImage})

	if !req.Force {
		exists, err := b.engine.ImageExists(ctx, ref)
		if err != nil {
			log.WithError(err).Warn("Failed to check image existence")
		}
		if exists {
			log.Debug("Using existing runtime image")
			return ref, nil
		}
	}

	buildArgs, err := parseBuildArgs(req.BuildArgs)
	if err != nil {
		return "", err
	}

	buildContext, err := tarContext([]byte(Dockerfile(req)))
	if err != nil {
		return "", fmt.Errorf("creating build context: %w", err)
	}

	log.Info("Building runtime image")
	opts := types.ImageBuildOptions{
		Tags:       []string{ref},
		Dockerfile: "Dockerfile",
		Remove:     true,
		NoCache:    req.Force,
		Platform:   req.Platform,
		BuildArgs:  buildArgs,
	}
	if err := b.engine.BuildImage(ctx, buildContext, opts); err != nil {
		return "", fmt.Errorf("building %s: %w", ref, err)
	}

	log.Info("Runtime image built")
	return ref, nil
}

// Dockerfile renders the build recipe for req.
func Dockerfile(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n", req.BaseImage)
	if deps := strings.TrimSpace(req.ExtraDeps); deps != "" {
		fmt.Fprintf(&b, "RUN %s\n", deps)
	}
	return b.String()
}

func parseBuildArgs(args []string) (map[string]*string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]*string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid build arg %q: expected KEY=VALUE", arg)
		}
		out[key] = &value
	}
	return out, nil
}

func tarContext(dockerfile []byte) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	header := &tar.Header{
		Name: "Dockerfile",
		Size: int64(len(dockerfile)),
		Mode: 0644,
	}
	if err := tw.WriteHeader(header); err != nil {
		return nil, err
	}
	if _, err := tw.Write(dockerfile); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	return &buf, nil
}

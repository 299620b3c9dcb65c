package muxer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Profile is one container and codec combination.
type Profile struct {
	MimeType   string
	Extension  string
	Format     string
	VideoCodec string
	AudioCodec string
}

// Codecs returns the encoders the profile needs.
func (p Profile) Codecs() []string {
	var out []string
	if p.VideoCodec != "" {
		out = append(out, p.VideoCodec)
	}
	if p.AudioCodec != "" {
		out = append(out, p.AudioCodec)
	}
	return out
}

// Profiles lists the candidates in preference order. The last entry lets
// ffmpeg pick its default webm codecs.
var Profiles = []Profile{
	{MimeType: "video/webm;codecs=vp9,opus", Extension: "webm", Format: "webm", VideoCodec: "libvpx-vp9", AudioCodec: "libopus"},
	{MimeType: "video/webm;codecs=vp8,opus", Extension: "webm", Format: "webm", VideoCodec: "libvpx", AudioCodec: "libopus"},
	{MimeType: "video/mp4;codecs=avc1.42E01E,mp4a.40.2", Extension: "mp4", Format: "mp4", VideoCodec: "libx264", AudioCodec: "aac"},
	{MimeType: "video/webm", Extension: "webm", Format: "webm"},
}

type probeRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ListEncoders parses `ffmpeg -encoders` output into encoder names.
func ListEncoders(ctx context.Context, binary string, probe probeRunner) (map[string]bool, error) {
	if probe == nil {
		probe = defaultProbeRunner
	}
	out, err := probe(ctx, binary, "-hide_banner", "-encoders")
	if err != nil {
		return nil, fmt.Errorf("list ffmpeg encoders: %w", err)
	}
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	pastHeader := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !pastHeader {
			pastHeader = strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && len(fields[0]) == 6 {
			encoders[fields[1]] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse ffmpeg encoders: %w", err)
	}
	return encoders, nil
}

// SelectProfile returns the first profile whose encoders are all available.
func SelectProfile(encoders map[string]bool) Profile {
	for _, p := range Profiles {
		supported := true
		for _, codec := range p.Codecs() {
			if !encoders[codec] {
				supported = false
				break
			}
		}
		if supported {
			return p
		}
	}
	return Profiles[len(Profiles)-1]
}

// ExtensionFor derives the file extension from a container MIME type.
func ExtensionFor(mimeType string) string {
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok {
		return "webm"
	}
	sub, _, _ = strings.Cut(sub, ";")
	if sub = strings.TrimSpace(sub); sub == "" {
		return "webm"
	}
	return sub
}

func defaultProbeRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return out, nil
}

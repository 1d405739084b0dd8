package encoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoVideoStream is returned when a file has no video track to encode.
var ErrNoVideoStream = errors.New("no video stream")

// MediaInfo is the subset of track metadata that shapes a pipeline.
type MediaInfo struct {
	Path        string        `json:"path"`
	Size        int64         `json:"size"`
	Duration    time.Duration `json:"duration"`
	VideoCodec  string        `json:"video_codec"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Rotation    int           `json:"rotation"`    // degrees, from tags or display matrix
	Rotated     bool          `json:"rotated"`     // rotation metadata present and non-zero
	AudioCodec  string        `json:"audio_codec"` // first audio stream
	AudioTracks int           `json:"audio_tracks"`
}

// HasAudio reports whether the file carries at least one audio track.
func (m *MediaInfo) HasAudio() bool {
	return m.AudioTracks > 0
}

// ffprobeOutput represents the JSON output from ffprobe
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Tags         map[string]string `json:"tags"`
	SideDataList []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

// Prober wraps ffprobe functionality
type Prober struct {
	ffprobePath string
}

// NewProber creates a new Prober with the given ffprobe path
func NewProber(ffprobePath string) *Prober {
	return &Prober{ffprobePath: ffprobePath}
}

// Probe returns rotation and audio metadata about a video file
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	prepareCmd(cmd)
	cmd.WaitDelay = waitDelay

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(path, output)
}

func parseProbeOutput(path string, output []byte) (*MediaInfo, error) {
	var probeOutput ffprobeOutput
	if err := json.Unmarshal(output, &probeOutput); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &MediaInfo{Path: path}

	if probeOutput.Format.Size != "" {
		info.Size, _ = strconv.ParseInt(probeOutput.Format.Size, 10, 64)
	}
	if probeOutput.Format.Duration != "" {
		durationSec, _ := strconv.ParseFloat(probeOutput.Format.Duration, 64)
		info.Duration = time.Duration(durationSec * float64(time.Second))
	}

	hasVideo := false
	for i := range probeOutput.Streams {
		stream := &probeOutput.Streams[i]
		switch stream.CodecType {
		case "video":
			if hasVideo {
				continue
			}
			// Cover art is reported as a video stream; only the first
			// video stream decides rotation, same as the encoder input.
			hasVideo = true
			info.VideoCodec = stream.CodecName
			info.Width = stream.Width
			info.Height = stream.Height
			info.Rotation = streamRotation(stream)
			info.Rotated = info.Rotation != 0
		case "audio":
			if info.AudioTracks == 0 {
				info.AudioCodec = stream.CodecName
			}
			info.AudioTracks++
		}
	}

	if !hasVideo {
		return nil, ErrNoVideoStream
	}
	return info, nil
}

// streamRotation reads rotation from the legacy "rotate" tag, falling back
// to the display matrix side data newer ffprobe versions report instead.
func streamRotation(stream *ffprobeStream) int {
	if v, ok := stream.Tags["rotate"]; ok {
		if deg, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return normalizeRotation(deg)
		}
	}
	for _, sd := range stream.SideDataList {
		if sd.SideDataType == "Display Matrix" {
			return normalizeRotation(int(math.Round(sd.Rotation)))
		}
	}
	return 0
}

// normalizeRotation maps any angle into [0, 360).
func normalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

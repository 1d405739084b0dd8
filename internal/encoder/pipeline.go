package encoder

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mainite/videoslim/internal/profile"
)

// StageKind names the role a stage plays in a pipeline.
type StageKind string

const (
	StageNormalize    StageKind = "normalize"
	StageExtractAudio StageKind = "extract_audio"
	StageEncodeAudio  StageKind = "encode_audio"
	StageEncodeVideo  StageKind = "encode_video"
	StageMux          StageKind = "mux"
)

// Stage is one external program invocation.
type Stage struct {
	Kind        StageKind `json:"kind"`
	Program     string    `json:"program"`
	Args        []string  `json:"args"`
	Description string    `json:"description"`
}

// String renders the stage as a shell-style command line for logs.
func (s Stage) String() string {
	parts := make([]string, 0, len(s.Args)+1)
	parts = append(parts, quoteArg(s.Program))
	for _, a := range s.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return strconv.Quote(s)
	}
	return s
}

// Pipeline is the ordered list of stages built for one input file.
type Pipeline []Stage

// Kinds returns the stage kinds in order.
func (p Pipeline) Kinds() []StageKind {
	kinds := make([]StageKind, len(p))
	for i, s := range p {
		kinds[i] = s.Kind
	}
	return kinds
}

// Tools holds the program paths a pipeline invokes.
type Tools struct {
	FFmpeg  string
	X264    string
	NeroAAC string
	MP4Box  string
}

// TempFiles are the fixed intermediate paths shared by every pipeline.
// They are global: only one pipeline may run at a time.
type TempFiles struct {
	PreProcess string // rotation-normalized remux
	AudioWAV   string // extracted PCM audio
	AudioAAC   string // AAC-encoded audio
	Video      string // x264 output before muxing
}

// NewTempFiles places the intermediate files in dir.
func NewTempFiles(dir string) TempFiles {
	return TempFiles{
		PreProcess: filepath.Join(dir, "pre_temp.mp4"),
		AudioWAV:   filepath.Join(dir, "old_atemp.wav"),
		AudioAAC:   filepath.Join(dir, "old_atemp.mp4"),
		Video:      filepath.Join(dir, "old_vtemp.mp4"),
	}
}

// All returns every temp path.
func (t TempFiles) All() []string {
	return []string{t.PreProcess, t.AudioWAV, t.AudioAAC, t.Video}
}

// Builder turns (file, profile, options, media info) into a Pipeline.
type Builder struct {
	Tools Tools
	Temp  TempFiles
}

// Build returns the stages that compress input into output. It is pure:
// the same arguments always yield the same pipeline.
//
// When the source carries rotation metadata a normalize stage is prepended.
// Later stages still read the original input, not the normalized copy.
func (b Builder) Build(input, output string, x264 profile.X264, deleteAudio bool, info *MediaInfo) Pipeline {
	var stages Pipeline

	if info.Rotated {
		stages = append(stages, Stage{
			Kind:        StageNormalize,
			Program:     b.Tools.FFmpeg,
			Args:        []string{"-i", input, b.Temp.PreProcess},
			Description: "Normalizing rotation metadata",
		})
	}

	hasAudio := info.HasAudio() && !deleteAudio
	if !hasAudio {
		return append(stages, b.encodeVideo(input, output, x264))
	}

	return append(stages,
		Stage{
			Kind:    StageExtractAudio,
			Program: b.Tools.FFmpeg,
			Args: []string{
				"-i", input,
				"-vn", "-sn", "-v", "0",
				"-c:a", "pcm_s16le",
				"-f", "wav", b.Temp.AudioWAV,
			},
			Description: "Extracting audio",
		},
		Stage{
			Kind:    StageEncodeAudio,
			Program: b.Tools.NeroAAC,
			Args: []string{
				"-ignorelength", "-lc", "-br", "128000",
				"-if", b.Temp.AudioWAV,
				"-of", b.Temp.AudioAAC,
			},
			Description: "Encoding audio",
		},
		b.encodeVideo(input, b.Temp.Video, x264),
		Stage{
			Kind:    StageMux,
			Program: b.Tools.MP4Box,
			Args: []string{
				"-add", b.Temp.Video + "#trackID=1:name=",
				"-add", b.Temp.AudioAAC + "#trackID=1:name=",
				"-new", output,
			},
			Description: "Muxing video and audio",
		},
	)
}

func (b Builder) encodeVideo(input, output string, x264 profile.X264) Stage {
	return Stage{
		Kind:        StageEncodeVideo,
		Program:     b.Tools.X264,
		Args:        X264Args(x264, input, output),
		Description: "Encoding video",
	}
}

// formatCRF renders the CRF as the existing encoder chain always has: the
// shortest exact decimal, with ".0" kept on whole numbers (23 -> "23.0").
func formatCRF(crf float64) string {
	s := strconv.FormatFloat(crf, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// X264Args builds the x264 argument list. The tuning flags after -b are
// fixed and must stay byte-identical for output compatibility.
func X264Args(x264 profile.X264, input, output string) []string {
	args := []string{
		"--crf", formatCRF(x264.CRF),
		"--preset", string(x264.Preset),
		"-I", strconv.Itoa(x264.Keyint),
		"-r", strconv.Itoa(x264.BRef),
		"-b", strconv.Itoa(x264.BFrames),
		"--me", "umh",
		"-i", "1",
		"--scenecut", "60",
		"-f", "1:1",
		"--qcomp", "0.5",
		"--psy-rd", "0.3:0",
		"--aq-mode", "2",
		"--aq-strength", "0.8",
		"-o", output,
		input,
	}
	if x264.OpenCL {
		args = append(args, "--opencl")
	}
	return args
}

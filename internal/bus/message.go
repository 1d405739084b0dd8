package bus

import "encoding/json"

// Kind identifies a Message variant. Consumers switch on Kind (or on the
// concrete type); the exhaustive linter flags switches missing a Kind.
type Kind string

const (
	KindWarning             Kind = "warning"
	KindError               Kind = "error"
	KindUpdateAvailable     Kind = "update_available"
	KindExit                Kind = "exit"
	KindProfilesLoaded      Kind = "profiles_loaded"
	KindCompressionStarted  Kind = "compression_started"
	KindStageProgress       Kind = "stage_progress"
	KindFileProgress        Kind = "file_progress"
	KindCompressionError    Kind = "compression_error"
	KindCompressionFinished Kind = "compression_finished"
)

// Message is the closed set of values carried by the bus. Only types in this
// package implement it.
//
//sumtype:decl
type Message interface {
	Kind() Kind
	sealed()
}

// Warning is a non-fatal notice for the user.
type Warning struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Error is a failure outside a compression run.
type Error struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// UpdateAvailable reports that a newer release than the running one exists.
type UpdateAvailable struct {
	Latest string `json:"latest,omitempty"`
}

// Exit tells the presentation layer to shut down.
type Exit struct{}

// ProfilesLoaded carries the profile names available for selection.
type ProfilesLoaded struct {
	Names []string `json:"names"`
}

// CompressionStarted opens a batch of FileCount files.
type CompressionStarted struct {
	FileCount int `json:"file_count"`
}

// StageProgress reports that stage StageIndex (1-based) of StageCount is
// about to run for File.
type StageProgress struct {
	File       string `json:"file"`
	StageIndex int    `json:"stage_index"`
	StageCount int    `json:"stage_count"`
}

// FileProgress reports that file FileIndex (1-based) of FileCount is starting.
type FileProgress struct {
	FileIndex int    `json:"file_index"`
	FileCount int    `json:"file_count"`
	File      string `json:"file"`
}

// CompressionError reports a failed file, or a batch that found no files.
type CompressionError struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// CompressionFinished closes a batch; ProcessedCount counts attempted files.
type CompressionFinished struct {
	ProcessedCount int `json:"processed_count"`
}

func (Warning) Kind() Kind             { return KindWarning }
func (Error) Kind() Kind               { return KindError }
func (UpdateAvailable) Kind() Kind     { return KindUpdateAvailable }
func (Exit) Kind() Kind                { return KindExit }
func (ProfilesLoaded) Kind() Kind      { return KindProfilesLoaded }
func (CompressionStarted) Kind() Kind  { return KindCompressionStarted }
func (StageProgress) Kind() Kind       { return KindStageProgress }
func (FileProgress) Kind() Kind        { return KindFileProgress }
func (CompressionError) Kind() Kind    { return KindCompressionError }
func (CompressionFinished) Kind() Kind { return KindCompressionFinished }

func (Warning) sealed()             {}
func (Error) sealed()               {}
func (UpdateAvailable) sealed()     {}
func (Exit) sealed()                {}
func (ProfilesLoaded) sealed()      {}
func (CompressionStarted) sealed()  {}
func (StageProgress) sealed()       {}
func (FileProgress) sealed()        {}
func (CompressionError) sealed()    {}
func (CompressionFinished) sealed() {}

// Encode renders a message as a JSON object with a "type" discriminator,
// the format used on the SSE stream.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(msg.Kind())
	fields["type"] = kind

	return json.Marshal(fields)
}

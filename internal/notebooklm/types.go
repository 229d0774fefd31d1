package notebooklm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Notebook is one entry of the notebook listing.
type Notebook struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
}

// SourceRef identifies a source attached to a notebook.
type SourceRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NotebookDetail is a notebook together with its sources. Raw keeps the
// decoded payload for fields not mapped yet.
type NotebookDetail struct {
	Notebook
	Sources []SourceRef     `json:"sources"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// SourceKind selects the wire shape used when adding a source.
type SourceKind string

const (
	SourceText  SourceKind = "text"
	SourceURL   SourceKind = "url"
	SourceDrive SourceKind = "drive"
)

// AddSourceRequest describes a source to attach. For SourceText Content is
// the body, for SourceURL a web or video URL, for SourceDrive a document id.
type AddSourceRequest struct {
	Kind    SourceKind
	Content string
	Title   string
}

// AddedSource is the service's acknowledgement of a new source.
type AddedSource struct {
	ID    string     `json:"source_id"`
	Title string     `json:"title"`
	Kind  SourceKind `json:"type"`
}

// SyncResult reports a drive source re-sync.
type SyncResult struct {
	SourceID string `json:"source_id"`
	// SyncedAt is the server timestamp in seconds, zero when not reported.
	SyncedAt int64 `json:"synced_at,omitempty"`
}

// ChatGoal selects the conversational style of a notebook.
type ChatGoal string

const (
	GoalDefault     ChatGoal = "default"
	GoalSummary     ChatGoal = "summary"
	GoalExplanation ChatGoal = "explanation"
	GoalCritique    ChatGoal = "critique"
	GoalCustom      ChatGoal = "custom"
)

var chatGoalCodes = map[ChatGoal]int{
	GoalDefault:     1,
	GoalSummary:     2,
	GoalExplanation: 3,
	GoalCritique:    4,
	GoalCustom:      5,
}

// Strategy selects the research depth.
type Strategy string

const (
	Quick         Strategy = "quick"
	Comprehensive Strategy = "comprehensive"
)

// ParseStrategy accepts the canonical names and the service's own
// "fast"/"deep" aliases. Empty means Comprehensive.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "comprehensive", "deep":
		return Comprehensive, nil
	case "quick", "fast":
		return Quick, nil
	default:
		return "", fmt.Errorf("unknown research strategy %q", s)
	}
}

// ResearchSourceType is where a research task looks for material.
type ResearchSourceType int

const (
	ResearchWeb   ResearchSourceType = 1
	ResearchDrive ResearchSourceType = 4
)

// ResearchStart is returned when a research task is accepted.
type ResearchStart struct {
	TaskID   string `json:"task_id"`
	ReportID string `json:"report_id,omitempty"`
}

// ResearchSource is one discovered (title, url) pair.
type ResearchSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ResearchSnapshot is one observation of a research task.
type ResearchSnapshot struct {
	TaskID     string           `json:"task_id"`
	Found      bool             `json:"found"`
	StatusCode int              `json:"status_code"`
	Sources    []ResearchSource `json:"sources"`
	Summary    string           `json:"summary"`
}

// Research status codes reported at info[4].
const (
	ResearchInProgress = 1
	ResearchDone       = 2
	ResearchImported   = 6
)

// Completed reports whether the task has finished producing sources.
func (s ResearchSnapshot) Completed() bool {
	return s.Found && (s.StatusCode == ResearchDone || s.StatusCode == ResearchImported)
}

// ArtifactKind names a studio output.
type ArtifactKind string

const (
	ArtifactAudio       ArtifactKind = "audio"
	ArtifactReport      ArtifactKind = "report"
	ArtifactVideo       ArtifactKind = "video"
	ArtifactInfographic ArtifactKind = "infographic"
	ArtifactSlideDeck   ArtifactKind = "slide_deck"
	ArtifactDataTable   ArtifactKind = "data_table"
	ArtifactFlashcards  ArtifactKind = "flashcards"
	ArtifactMindMap     ArtifactKind = "mind_map"
	ArtifactQuiz        ArtifactKind = "quiz"
	ArtifactStudyGuide  ArtifactKind = "study_guide"
)

// ErrUnsupportedArtifact is returned for kinds without a known type code.
var ErrUnsupportedArtifact = errors.New("unsupported artifact type")

var studioTypeCodes = map[ArtifactKind]int{
	ArtifactAudio:       1,
	ArtifactReport:      3,
	ArtifactVideo:       5,
	ArtifactInfographic: 6,
	ArtifactSlideDeck:   7,
	ArtifactDataTable:   8,
	ArtifactFlashcards:  9,
}

var artifactAliases = map[string]ArtifactKind{
	"slides":        ArtifactSlideDeck,
	"google_sheets": ArtifactDataTable,
	"mindmap":       ArtifactMindMap,
}

// ParseArtifactKind normalizes a user supplied kind name.
func ParseArtifactKind(s string) ArtifactKind {
	k := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := artifactAliases[k]; ok {
		return alias
	}
	return ArtifactKind(k)
}

// StudioTypeCode returns the numeric studio code for kind.
func StudioTypeCode(kind ArtifactKind) (int, error) {
	code, ok := studioTypeCodes[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedArtifact, kind)
	}
	return code, nil
}

// StudioKind maps a studio code back to its kind name.
func StudioKind(code int) ArtifactKind {
	for k, c := range studioTypeCodes {
		if c == code {
			return k
		}
	}
	return "unknown"
}

// StudioCodes lists every studio code, ascending.
func StudioCodes() []int {
	return []int{1, 3, 5, 6, 7, 8, 9}
}

// Artifact is a studio output listed for a notebook.
type Artifact struct {
	ID       string          `json:"id"`
	TypeCode int             `json:"type_code"`
	Kind     ArtifactKind    `json:"type"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

package domain

import (
	"encoding/json"
	"time"
)

// TargetKind enumerates the artifact kinds that can be generated.
type TargetKind string

const (
	TargetKindStory     TargetKind = "story"
	TargetKindCharacter TargetKind = "character"
)

// AssetType names one independently generated slot within a target.
type AssetType string

const (
	AssetTypeCover      AssetType = "cover"
	AssetTypeScene1     AssetType = "scene_1"
	AssetTypeScene2     AssetType = "scene_2"
	AssetTypeScene3     AssetType = "scene_3"
	AssetTypeScene4     AssetType = "scene_4"
	AssetTypeAudio      AssetType = "audio"
	AssetTypePDF        AssetType = "pdf"
	AssetTypeQR         AssetType = "qr"
	AssetTypeActivities AssetType = "activities"
	AssetTypePalette    AssetType = "palette"

	AssetTypeAppearance AssetType = "appearance"
	AssetTypeHeadshot   AssetType = "headshot"
	AssetTypeBodyshot   AssetType = "bodyshot"
)

var storyAssetTypes = []AssetType{
	AssetTypeCover,
	AssetTypeScene1,
	AssetTypeScene2,
	AssetTypeScene3,
	AssetTypeScene4,
	AssetTypeAudio,
	AssetTypePDF,
	AssetTypeQR,
	AssetTypeActivities,
	AssetTypePalette,
}

var characterAssetTypes = []AssetType{
	AssetTypeAppearance,
	AssetTypeHeadshot,
	AssetTypeBodyshot,
}

// AssetTypesForKind returns the required asset enumeration for a kind. This is
// the single source of truth consulted by target creation, the status
// aggregator and the completion gate; adding an asset type to a kind only
// requires extending the slice above.
func AssetTypesForKind(kind TargetKind) []AssetType {
	switch kind {
	case TargetKindStory:
		return append([]AssetType(nil), storyAssetTypes...)
	case TargetKindCharacter:
		return append([]AssetType(nil), characterAssetTypes...)
	default:
		return nil
	}
}

// ValidAssetType reports whether assetType belongs to the kind's enumeration.
func ValidAssetType(kind TargetKind, assetType AssetType) bool {
	for _, at := range AssetTypesForKind(kind) {
		if at == assetType {
			return true
		}
	}
	return false
}

// TargetStatus enumerates both per-asset and overall generation states.
type TargetStatus string

const (
	StatusPending    TargetStatus = "pending"
	StatusGenerating TargetStatus = "generating"
	StatusReady      TargetStatus = "ready"
	StatusFailed     TargetStatus = "failed"
)

// AssetState is the generation state of one asset slot within a target.
// URL is non-empty if and only if Status is ready. Attempt only increases.
type AssetState struct {
	Type      AssetType
	Status    TargetStatus
	URL       string
	Attempt   int
	StartedAt *time.Time
	Error     string
	UpdatedAt time.Time
}

// AssetDelta carries the fields a worker may change on an asset slot. Nil
// pointers leave the corresponding column untouched, so a commit of url and
// status always lands in one write.
type AssetDelta struct {
	Status     *TargetStatus
	URL        *string
	Attempt    *int
	StartedAt  *time.Time
	ClearStart bool
	Error      *string
}

// Target is the record representing one story or character being generated.
// Status is derived from Assets via ComputeStatus and never set by callers.
type Target struct {
	ID        string
	OwnerID   string
	Kind      TargetKind
	Input     json.RawMessage
	Assets    map[AssetType]AssetState
	Status    TargetStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAssets builds the initial pending asset map for a kind.
func NewAssets(kind TargetKind, now time.Time) map[AssetType]AssetState {
	assets := make(map[AssetType]AssetState)
	for _, at := range AssetTypesForKind(kind) {
		assets[at] = AssetState{Type: at, Status: StatusPending, UpdatedAt: now}
	}
	return assets
}

// StoryInput is the kind-specific payload for story targets.
type StoryInput struct {
	Title    string `json:"title"`
	Synopsis string `json:"synopsis"`
	AgeRange string `json:"age_range,omitempty"`
	Language string `json:"language,omitempty"`
}

// CharacterInput is the kind-specific payload for character targets.
type CharacterInput struct {
	Name     string `json:"name"`
	Traits   string `json:"traits"`
	Language string `json:"language,omitempty"`
}

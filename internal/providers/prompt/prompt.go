package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/domain"
)

// Story decodes the story input payload, applying defaults.
func Story(input json.RawMessage) domain.StoryInput {
	var in domain.StoryInput
	_ = json.Unmarshal(input, &in)
	if in.Title == "" {
		in.Title = "An Untitled Adventure"
	}
	if in.Language == "" {
		in.Language = "en"
	}
	if in.AgeRange == "" {
		in.AgeRange = "4-8"
	}
	return in
}

// Character decodes the character input payload, applying defaults.
func Character(input json.RawMessage) domain.CharacterInput {
	var in domain.CharacterInput
	_ = json.Unmarshal(input, &in)
	if in.Name == "" {
		in.Name = "Unnamed Hero"
	}
	if in.Language == "" {
		in.Language = "en"
	}
	return in
}

// Title normalizes a free-form title into display casing.
func Title(s string) string {
	c := cases.Title(language.Und)
	return c.String(strings.TrimSpace(s))
}

var sceneMoments = [...]string{
	"the opening moment where the hero's ordinary world is shown",
	"the moment the adventure begins and something unexpected happens",
	"the most dramatic turning point of the story",
	"the warm closing moment where everything is resolved",
}

// StoryImage builds the illustration prompt for a story image slot.
func StoryImage(in domain.StoryInput, assetType domain.AssetType) string {
	style := fmt.Sprintf(
		"Children's picture-book illustration, soft colors, friendly shapes, suitable for ages %s. No text in the image.",
		in.AgeRange,
	)
	switch assetType {
	case domain.AssetTypeCover:
		return fmt.Sprintf("Book cover for %q. %s Story: %s", Title(in.Title), style, in.Synopsis)
	case domain.AssetTypeScene1, domain.AssetTypeScene2, domain.AssetTypeScene3, domain.AssetTypeScene4:
		idx := sceneIndex(assetType)
		return fmt.Sprintf("Illustration of %s in the story %q. %s Story: %s",
			sceneMoments[idx], Title(in.Title), style, in.Synopsis)
	default:
		return fmt.Sprintf("Illustration for the story %q. %s", Title(in.Title), style)
	}
}

// CharacterImage builds the portrait prompt for a character image slot.
func CharacterImage(in domain.CharacterInput, assetType domain.AssetType) string {
	base := fmt.Sprintf(
		"Children's book character %q. Traits: %s. Consistent friendly art style, plain background.",
		Title(in.Name), in.Traits,
	)
	switch assetType {
	case domain.AssetTypeHeadshot:
		return base + " Close-up portrait of the face and shoulders."
	case domain.AssetTypeBodyshot:
		return base + " Full-body standing pose."
	default:
		return base
	}
}

// Narration builds the text passed to speech synthesis for a story.
func Narration(in domain.StoryInput) string {
	return fmt.Sprintf("%s. %s", Title(in.Title), strings.TrimSpace(in.Synopsis))
}

// Activities builds the prompt for a printable activity sheet.
func Activities(in domain.StoryInput) string {
	return fmt.Sprintf(
		"Write a JSON object with fields \"questions\" (three discussion questions) and "+
			"\"activities\" (three simple craft or play activities) for children aged %s who just read %q. "+
			"Story: %s. Respond with JSON only.",
		in.AgeRange, Title(in.Title), in.Synopsis,
	)
}

// Appearance builds the prompt for a character's written appearance profile.
func Appearance(in domain.CharacterInput) string {
	return fmt.Sprintf(
		"Write a JSON object with fields \"summary\", \"visual_details\" and \"personality\" describing "+
			"the children's book character %q with these traits: %s. Respond with JSON only.",
		Title(in.Name), in.Traits,
	)
}

func sceneIndex(assetType domain.AssetType) int {
	switch assetType {
	case domain.AssetTypeScene2:
		return 1
	case domain.AssetTypeScene3:
		return 2
	case domain.AssetTypeScene4:
		return 3
	default:
		return 0
	}
}

package llm

// Style is one entry of the visual style library.
type Style struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	PromptSpec  string `json:"promptSpec"`
}

const DefaultStyle = "default"

var styleLibrary = []Style{
	{
		ID:          "default",
		Label:       "預設風格",
		Description: "平衡的視覺風格",
		PromptSpec:  "a balanced, professional visual style",
	},
	{
		ID:          "cinematic",
		Label:       "電影風格",
		Description: "戲劇性的電影感畫面",
		PromptSpec:  "cinematic wide shot, dramatic lighting, film grain, movie scene",
	},
	{
		ID:          "anime",
		Label:       "動漫風格",
		Description: "日系動漫插畫風格",
		PromptSpec:  "anime style illustration, vibrant colors, Japanese animation aesthetic",
	},
	{
		ID:          "DaVinci",
		Label:       "達文西風格",
		Description: "達文西手稿素描風格",
		PromptSpec:  "Hand-drawn sketch, ballpoint pen or ink, on textured beige paper; Da Vinci notebook vibe.",
	},
	{
		ID:          "The Intellectual Collage",
		Label:       "藝術拼貼風格",
		Description: "藝術拼貼風格",
		PromptSpec:  "in the style of mixed media collage art, vintage swiss design, cutout aesthetics, textured paper background, grain, muted bauhaus color palette, minimalist composition, conceptual abstraction, high quality editorial illustration",
	},
}

// Styles returns a copy of the style library.
func Styles() []Style {
	return append([]Style(nil), styleLibrary...)
}

// StyleSpec returns the prompt modifier for a style id, falling back to the
// default style for unknown ids.
func StyleSpec(id string) string {
	for _, s := range styleLibrary {
		if s.ID == id {
			return s.PromptSpec
		}
	}
	return styleLibrary[0].PromptSpec
}

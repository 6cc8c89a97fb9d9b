package gemini

// Analysis is the cinematographic breakdown of one frame. All six fields
// are required by the response schema, so a successfully parsed Analysis
// is always fully populated.
type Analysis struct {
	VisualDescription string `json:"visualDescription"`
	ShotSize          string `json:"shotSize"`
	CameraMovement    string `json:"cameraMovement"`
	LightingAndColor  string `json:"lightingAndColor"`
	SoundAtmosphere   string `json:"soundAtmosphere"`
	AIPrompt          string `json:"aiPrompt"`
}

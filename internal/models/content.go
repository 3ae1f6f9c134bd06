// internal/models/content.go
package models

// ContentIdea is one video idea derived from a transcript.
type ContentIdea struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// VideoScript is a blog-style script generated for a content idea.
// ID stays stable across refinement and is replaced on full regeneration.
type VideoScript struct {
	ID     string `json:"id"`
	IdeaID string `json:"ideaId"`
	Title  string `json:"title"`
	Script string `json:"script"`
}

// LinkedInPost promotes the video described by a script.
type LinkedInPost struct {
	ID       string `json:"id"`
	ScriptID string `json:"scriptId"`
	Post     string `json:"post"`
}

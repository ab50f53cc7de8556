package model

type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Content   string `json:"content"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type UpdateTitleRequest struct {
	Title string `json:"title" binding:"required"`
}

package models

// Statistics summarizes the dictionary and its moderation backlog
type Statistics struct {
	Entries   map[EntryStatus]int    `json:"entries"`
	Revisions map[RevisionStatus]int `json:"revisions"`
	Reviewers []ReviewerStats        `json:"reviewers"`
}

// ReviewerStats counts the revisions one moderator resolved
type ReviewerStats struct {
	ReviewerID string `json:"reviewer_id" db:"reviewer_id"`
	Approved   int    `json:"approved" db:"approved"`
	Rejected   int    `json:"rejected" db:"rejected"`
}

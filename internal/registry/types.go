package registry

import "github.com/alexjbarnes/vault-share/internal/vault"

// Request and response bodies for the registry REST API.

type userRequest struct {
	User string `json:"user"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

type fileIDRequest struct {
	FileID string `json:"fileId"`
}

type fileRequest struct {
	File vault.FileEntry `json:"file"`
}

type fileResponse struct {
	File vault.FileEntry `json:"file"`
}

type filesListResponse struct {
	Files []vault.FileEntry `json:"files"`
}

type trashListResponse struct {
	Entries []vault.TrashTombstone `json:"entries"`
}

type trashMoveRequest struct {
	User    string                 `json:"user"`
	Entries []vault.TrashTombstone `json:"entries"`
}

type trashIDsRequest struct {
	User    string   `json:"user"`
	FileIDs []string `json:"fileIds"`
}

type shareRequest struct {
	Share vault.ShareRecord `json:"share"`
}

type sharesListResponse struct {
	Shares []vault.ShareRecord `json:"shares"`
}

type shareDeleteRequest struct {
	FileID    string `json:"fileId"`
	Recipient string `json:"recipient,omitempty"`
}

type shareUpdateRequest struct {
	FileID string            `json:"fileId"`
	Update vault.ShareUpdate `json:"update"`
}

type recipientsResponse struct {
	Recipients []string `json:"recipients"`
}

type fileIDsResponse struct {
	FileIDs []string `json:"fileIds"`
}

type markerRequest struct {
	Kind    vault.MarkerKind `json:"kind"`
	User    string           `json:"user"`
	FileIDs []string         `json:"fileIds,omitempty"`
}

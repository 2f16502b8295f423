package obsws

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

const (
	requestGetAuthRequired    = "GetAuthRequired"
	requestAuthenticate       = "Authenticate"
	requestGetRecordingFolder = "GetRecordingFolder"
	requestGetRecordingStatus = "GetRecordingStatus"

	eventRecordingStarted = "RecordingStarted"
	eventRecordingStopped = "RecordingStopped"

	statusOK = "ok"
)

// message is the union of responses and events sent by the server.
type message struct {
	MessageID  string `json:"message-id"`
	Status     string `json:"status"`
	Error      string `json:"error"`
	UpdateType string `json:"update-type"`

	raw json.RawMessage
}

func (m *message) isEvent() bool { return m.UpdateType != "" }

func (m *message) decode(v any) error { return json.Unmarshal(m.raw, v) }

type authRequiredResponse struct {
	AuthRequired bool   `json:"authRequired"`
	Challenge    string `json:"challenge"`
	Salt         string `json:"salt"`
}

type recordingFolderResponse struct {
	Folder string `json:"rec-folder"`
}

type recordingStatusResponse struct {
	IsRecording       bool   `json:"isRecording"`
	IsRecordingPaused bool   `json:"isRecordingPaused"`
	Filename          string `json:"recordingFilename"`
}

// AuthResponse computes the v4 authentication string:
// base64(sha256(base64(sha256(password+salt)) + challenge)).
func AuthResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

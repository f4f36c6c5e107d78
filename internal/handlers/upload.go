package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UploadMedia accepts a multipart file and runs the placeholder upload
// flow: the group sees an uploading message immediately, which is patched
// with the hosted URL on success or removed on failure.
func UploadMedia(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10MB
		writeMessage(w, http.StatusBadRequest, "Failed to parse form: "+err.Error())
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	msg, err := deps.Messages.SendMedia(r.Context(), actor, groupID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Success: true, Message: "File uploaded", Msg: msg})
}

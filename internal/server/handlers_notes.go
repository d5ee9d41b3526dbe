package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/notehub/internal/apperr"
	"github.com/MarcoPoloResearchLab/notehub/internal/media"
	"github.com/MarcoPoloResearchLab/notehub/internal/notes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	attachmentFormField = "file"

	opListNotes  = "notes.list"
	opCreateNote = "notes.create"
	opUpdateNote = "notes.update"
	opDeleteNote = "notes.delete"
)

var (
	errAttachmentTooLarge  = errors.New("file exceeds the upload size limit")
	errUnreadableForm      = errors.New("invalid form data")
	errUnsupportedDeletion = errors.New("either 'id' parameter or 'ids' array in request body is required")
)

type listNotesResponsePayload struct {
	Success    bool             `json:"success"`
	Notes      []notes.Note     `json:"notes"`
	Pagination notes.Pagination `json:"pagination"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"totalPages"`
}

type deleteNotesPayload struct {
	IDs []string `json:"ids"`
}

func newListNotesResponse(page notes.Page) listNotesResponsePayload {
	found := page.Notes
	if found == nil {
		found = []notes.Note{}
	}
	return listNotesResponsePayload{
		Success:    true,
		Notes:      found,
		Pagination: page.Pagination,
		Total:      page.Pagination.TotalCount,
		TotalPages: page.Pagination.TotalPages,
	}
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	if rawID := c.Query("id"); rawID != "" {
		h.writeNote(c, rawID)
		return
	}

	request, err := notes.ParsePageRequest(c.Query("page"), c.Query("limit"))
	if err != nil {
		h.respondError(c, apperr.New(apperr.KindValidation, opListNotes, "invalid_pagination", err))
		return
	}
	page, err := h.notes.List(c.Request.Context(), filterFromQuery(c), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListNotesResponse(page))
}

func (h *httpHandler) handleListUserNotes(c *gin.Context) {
	request, err := notes.ParsePageRequest(c.Query("page"), c.Query("limit"))
	if err != nil {
		h.respondError(c, apperr.New(apperr.KindValidation, opListNotes, "invalid_pagination", err))
		return
	}
	filter := filterFromQuery(c)
	filter.UploadedBy = ""
	page, err := h.notes.ListByUploader(c.Request.Context(), c.Query("email"), filter, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListNotesResponse(page))
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	h.writeNote(c, c.Param("id"))
}

func (h *httpHandler) writeNote(c *gin.Context, rawID string) {
	note, err := h.notes.Get(c.Request.Context(), rawID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": note})
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	var (
		input      notes.CreateInput
		attachment *media.Object
	)
	if isJSONRequest(c) {
		if err := c.ShouldBindJSON(&input); err != nil {
			if isBodyTooLarge(err) {
				h.respondError(c, apperr.New(apperr.KindValidation, opCreateNote, "attachment_too_large", errAttachmentTooLarge))
				return
			}
			h.respondBadRequest(c, codeInvalidBody, "invalid request body")
			return
		}
	} else {
		var cleanup func()
		var err error
		attachment, cleanup, err = h.readAttachment(c, opCreateNote)
		if err != nil {
			h.respondError(c, err)
			return
		}
		defer cleanup()
		input = notes.CreateInput{
			Input:        inputFromForm(c),
			UploadedBy:   c.PostForm("uploadedBy"),
			Organization: c.PostForm("organization"),
		}
	}

	if claims := sessionClaims(c); claims != nil {
		if strings.TrimSpace(input.UploadedBy) == "" {
			input.UploadedBy = claims.Email
		}
		if strings.TrimSpace(input.Organization) == "" {
			input.Organization = claims.Organization
		}
	}

	note, err := h.notes.Create(c.Request.Context(), input, attachment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Note created successfully",
		"noteId":  note.ID.Hex(),
		"data":    note,
	})
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	var (
		input      notes.Input
		attachment *media.Object
	)
	if isJSONRequest(c) {
		if err := c.ShouldBindJSON(&input); err != nil {
			if isBodyTooLarge(err) {
				h.respondError(c, apperr.New(apperr.KindValidation, opUpdateNote, "attachment_too_large", errAttachmentTooLarge))
				return
			}
			h.respondBadRequest(c, codeInvalidBody, "invalid request body")
			return
		}
	} else {
		var cleanup func()
		var err error
		attachment, cleanup, err = h.readAttachment(c, opUpdateNote)
		if err != nil {
			h.respondError(c, err)
			return
		}
		defer cleanup()
		input = inputFromForm(c)
	}

	if err := h.notes.Update(c.Request.Context(), c.Param("id"), input, attachment); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Note updated successfully"})
}

// handleDeleteNotes serves both DELETE /notes and DELETE /notes/:id.
// On /notes the id query parameter wins over a body; on /notes/:id a body of ids wins over the path.
func (h *httpHandler) handleDeleteNotes(c *gin.Context) {
	var ids []string
	if rawID := strings.TrimSpace(c.Query("id")); rawID != "" {
		ids = []string{rawID}
	} else {
		body, err := readDeleteBody(c)
		if err != nil {
			h.respondError(c, apperr.New(apperr.KindValidation, opDeleteNote, "invalid_body", errUnsupportedDeletion))
			return
		}
		switch {
		case len(body.IDs) > 0:
			ids = body.IDs
		case c.Param("id") != "":
			ids = []string{c.Param("id")}
		}
	}
	deleted, err := h.notes.Delete(c.Request.Context(), ids)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("notes deleted", zap.Int64("deleted_count", deleted))
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      fmt.Sprintf("%d note(s) deleted successfully", deleted),
		"deletedCount": deleted,
	})
}

func readDeleteBody(c *gin.Context) (deleteNotesPayload, error) {
	var body deleteNotesPayload
	if !hasBody(c) {
		return body, nil
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return deleteNotesPayload{}, err
	}
	return body, nil
}

func hasBody(c *gin.Context) bool {
	return c.Request.Body != nil && c.Request.Body != http.NoBody && c.Request.ContentLength != 0
}

func isJSONRequest(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEJSON
}

func filterFromQuery(c *gin.Context) notes.Filter {
	return notes.Filter{
		Branch:       c.Query("branch"),
		Semester:     c.Query("semester"),
		Subject:      c.Query("subject"),
		UploadedBy:   c.Query("uploadedBy"),
		Organization: c.Query("organization"),
		Search:       c.Query("search"),
	}
}

func inputFromForm(c *gin.Context) notes.Input {
	return notes.Input{
		Title:    c.PostForm("title"),
		Content:  c.PostForm("content"),
		Branch:   c.PostForm("branch"),
		Semester: c.PostForm("semester"),
		Subject:  c.PostForm("subject"),
	}
}

// readAttachment opens the optional uploaded file. The returned cleanup closes it and is never nil.
func (h *httpHandler) readAttachment(c *gin.Context, operation string) (*media.Object, func(), error) {
	noop := func() {}
	header, err := c.FormFile(attachmentFormField)
	if isBodyTooLarge(err) {
		return nil, noop, apperr.New(apperr.KindValidation, operation, "attachment_too_large", errAttachmentTooLarge)
	}
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, apperr.New(apperr.KindValidation, operation, "invalid_form", errUnreadableForm)
	}
	if header.Size == 0 {
		return nil, noop, nil
	}
	if header.Size > h.maxUpload {
		return nil, noop, apperr.New(apperr.KindValidation, operation, "attachment_too_large", errAttachmentTooLarge)
	}
	file, err := header.Open()
	if err != nil {
		return nil, noop, apperr.New(apperr.KindServer, operation, "attachment_unreadable", err)
	}
	return attachmentObject(header, file), func() { _ = file.Close() }, nil
}

func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func attachmentObject(header *multipart.FileHeader, file multipart.File) *media.Object {
	return &media.Object{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

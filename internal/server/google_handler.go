package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/gcalendar"
	"github.com/secretaria-app/secretaria/internal/gdrive"
	"github.com/secretaria-app/secretaria/internal/gmail"
	"github.com/secretaria-app/secretaria/internal/googleauth"
	"github.com/secretaria-app/secretaria/internal/server/middleware"
	"github.com/secretaria-app/secretaria/pkg/fs"
)

// GoogleStatusResponse reports the Drive connection and which of the other
// Google services are available.
type GoogleStatusResponse struct {
	gdrive.Status
	Drive    bool `json:"drive"`
	Calendar bool `json:"calendar"`
	Gmail    bool `json:"gmail"`
}

// DriveUploadRequest is the body of POST /api/google/drive/upload
type DriveUploadRequest struct {
	FileID uint `json:"file_id"`
}

// googleError maps a Google API failure to a response: 404 keeps its
// meaning, everything else is a bad gateway.
func googleError(c *gin.Context, err error, notFoundDetail string) {
	if googleauth.IsNotFound(err) {
		middleware.AbortWithDetail(c, http.StatusNotFound, notFoundDetail)
		return
	}
	logrus.WithField("path", c.FullPath()).Warnf("google api error: %v", err)
	middleware.AbortWithDetail(c, http.StatusBadGateway, err.Error())
}

// queryLimit reads an optional positive integer query parameter. It writes
// a 422 and returns false when the value is malformed.
func queryLimit(c *gin.Context, name string) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, fmt.Sprintf("Parámetro %s inválido", name))
		return 0, false
	}
	return n, true
}

// GoogleStatus reports which Google services are configured and whether
// Drive is reachable.
func (s *Server) GoogleStatus(c *gin.Context) {
	resp := GoogleStatusResponse{
		Drive:    s.deps.Drive != nil,
		Calendar: s.deps.Calendar != nil,
		Gmail:    s.deps.Gmail != nil,
	}
	if s.deps.Drive != nil {
		resp.Status = s.deps.Drive.Status(c.Request.Context())
	}
	resp.Configured = resp.Drive || resp.Calendar || resp.Gmail
	c.JSON(http.StatusOK, resp)
}

// calendar returns the Calendar client or writes a 400.
func (s *Server) calendar(c *gin.Context) *gcalendar.Client {
	if s.deps.Calendar == nil {
		middleware.AbortWithDetail(c, http.StatusBadRequest, detailCalendarDisabled)
	}
	return s.deps.Calendar
}

// CalendarEvents lists events between ?time_min and ?time_max.
func (s *Server) CalendarEvents(c *gin.Context) {
	cal := s.calendar(c)
	if cal == nil {
		return
	}
	limit, ok := queryLimit(c, "max_results")
	if !ok {
		return
	}
	events, err := cal.List(c.Request.Context(), gcalendar.Range{
		TimeMin:    c.Query("time_min"),
		TimeMax:    c.Query("time_max"),
		MaxResults: limit,
	})
	if err != nil {
		googleError(c, err, detailEventNotFound)
		return
	}
	c.JSON(http.StatusOK, events)
}

// CalendarToday lists today's events.
func (s *Server) CalendarToday(c *gin.Context) {
	cal := s.calendar(c)
	if cal == nil {
		return
	}
	events, err := cal.Today(c.Request.Context())
	if err != nil {
		googleError(c, err, detailEventNotFound)
		return
	}
	c.JSON(http.StatusOK, events)
}

// CalendarWeek lists the events of the next seven days.
func (s *Server) CalendarWeek(c *gin.Context) {
	cal := s.calendar(c)
	if cal == nil {
		return
	}
	events, err := cal.Week(c.Request.Context())
	if err != nil {
		googleError(c, err, detailEventNotFound)
		return
	}
	c.JSON(http.StatusOK, events)
}

// CalendarCreateEvent creates an event.
func (s *Server) CalendarCreateEvent(c *gin.Context) {
	cal := s.calendar(c)
	if cal == nil {
		return
	}
	var req gcalendar.NewEvent
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidBody)
		return
	}
	ev, err := cal.Create(c.Request.Context(), req)
	if errors.Is(err, gcalendar.ErrInvalidEvent) {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidBody)
		return
	} else if err != nil {
		googleError(c, err, detailEventNotFound)
		return
	}
	logrus.WithField("event", ev.ID).Info("calendar event created")
	c.JSON(http.StatusOK, ev)
}

// CalendarDeleteEvent deletes an event.
func (s *Server) CalendarDeleteEvent(c *gin.Context) {
	cal := s.calendar(c)
	if cal == nil {
		return
	}
	if err := cal.Delete(c.Request.Context(), c.Param("id")); err != nil {
		googleError(c, err, detailEventNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// mailbox returns the Gmail client or writes a 400.
func (s *Server) mailbox(c *gin.Context) *gmail.Client {
	if s.deps.Gmail == nil {
		middleware.AbortWithDetail(c, http.StatusBadRequest, detailGmailDisabled)
	}
	return s.deps.Gmail
}

// GmailListMessages lists messages matching ?q=.
func (s *Server) GmailListMessages(c *gin.Context) {
	s.listMail(c, c.Query("q"))
}

// GmailUnread lists unread messages.
func (s *Server) GmailUnread(c *gin.Context) {
	s.listMail(c, gmail.UnreadQuery)
}

func (s *Server) listMail(c *gin.Context, query string) {
	mb := s.mailbox(c)
	if mb == nil {
		return
	}
	limit, ok := queryLimit(c, "max")
	if !ok {
		return
	}
	list, err := mb.List(c.Request.Context(), query, limit)
	if err != nil {
		googleError(c, err, detailMailNotFound)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GmailGetMessage returns one message with its body.
func (s *Server) GmailGetMessage(c *gin.Context) {
	mb := s.mailbox(c)
	if mb == nil {
		return
	}
	msg, err := mb.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		googleError(c, err, detailMailNotFound)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// GmailSend sends a plain-text message.
func (s *Server) GmailSend(c *gin.Context) {
	mb := s.mailbox(c)
	if mb == nil {
		return
	}
	var req gmail.Outgoing
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidBody)
		return
	}
	sent, err := mb.Send(c.Request.Context(), req)
	if errors.Is(err, gmail.ErrInvalidMessage) {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, err.Error())
		return
	} else if err != nil {
		googleError(c, err, detailMailNotFound)
		return
	}
	logrus.WithField("message", sent.ID).Info("mail sent")
	c.JSON(http.StatusOK, sent)
}

// drive returns the Drive client or writes a 400.
func (s *Server) drive(c *gin.Context) *gdrive.Client {
	if s.deps.Drive == nil {
		middleware.AbortWithDetail(c, http.StatusBadRequest, detailDriveDisabled)
	}
	return s.deps.Drive
}

// DriveListFiles lists Drive files filtered by ?q= name fragment and
// ?folder= parent.
func (s *Server) DriveListFiles(c *gin.Context) {
	d := s.drive(c)
	if d == nil {
		return
	}
	limit, ok := queryLimit(c, "max")
	if !ok {
		return
	}
	list, err := d.List(c.Request.Context(), gdrive.ListFilter{
		Query:    c.Query("q"),
		FolderID: c.Query("folder"),
		Max:      limit,
	})
	if err != nil {
		googleError(c, err, detailDriveNotFound)
		return
	}
	c.JSON(http.StatusOK, list)
}

// DriveRecentFiles lists the most recently modified files.
func (s *Server) DriveRecentFiles(c *gin.Context) {
	d := s.drive(c)
	if d == nil {
		return
	}
	limit, ok := queryLimit(c, "max")
	if !ok {
		return
	}
	list, err := d.Recent(c.Request.Context(), limit)
	if err != nil {
		googleError(c, err, detailDriveNotFound)
		return
	}
	c.JSON(http.StatusOK, list)
}

// DriveGetFile returns the metadata of a Drive file.
func (s *Server) DriveGetFile(c *gin.Context) {
	d := s.drive(c)
	if d == nil {
		return
	}
	f, err := d.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		googleError(c, err, detailDriveNotFound)
		return
	}
	c.JSON(http.StatusOK, f)
}

// DriveDownload streams a Drive file as an attachment.
func (s *Server) DriveDownload(c *gin.Context) {
	d := s.drive(c)
	if d == nil {
		return
	}
	dl, err := d.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		googleError(c, err, detailDriveNotFound)
		return
	}
	defer dl.Body.Close()

	c.DataFromReader(http.StatusOK, dl.ContentLength, dl.MimeType, dl.Body, map[string]string{
		"Content-Disposition": attachmentDisposition(dl.Name),
	})
}

// attachmentDisposition builds the header the way gin's FileAttachment does.
func attachmentDisposition(name string) string {
	for _, r := range name {
		if r > unicode.MaxASCII {
			return `attachment; filename*=UTF-8''` + url.QueryEscape(name)
		}
	}
	return fmt.Sprintf("attachment; filename=%q", name)
}

// DriveUpload copies one of the user's stored files to Drive.
func (s *Server) DriveUpload(c *gin.Context) {
	d := s.drive(c)
	if d == nil {
		return
	}
	var req DriveUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FileID == 0 {
		middleware.AbortWithDetail(c, http.StatusUnprocessableEntity, detailInvalidBody)
		return
	}

	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	f, err := s.deps.Store.GetOwnedFile(ctx, user.ID, req.FileID)
	if err != nil {
		storeError(c, err, detailFileNotFound)
		return
	}
	if !fs.FileExists(f.Filepath) {
		middleware.AbortWithDetail(c, http.StatusNotFound, detailFileNotOnDisk)
		return
	}

	up, err := d.Upload(ctx, f.Filepath, f.Filename, f.MimeType)
	if err != nil {
		googleError(c, err, detailDriveNotFound)
		return
	}
	logrus.WithField("file", f.ID).Infof("uploaded %s to drive as %s", f.Filename, up.ID)
	c.JSON(http.StatusOK, up)
}

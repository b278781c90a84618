package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"chemlab/internal/blob"
	"chemlab/internal/chatbot"
	"chemlab/internal/model"
	"chemlab/internal/progress"
	"chemlab/internal/store"
)

// acceptedTypes maps accepted extensions to the MIME type stored with the record.
var acceptedTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

func AcceptedExtensions() []string {
	out := make([]string, 0, len(acceptedTypes))
	for ext := range acceptedTypes {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

type UploadRequest struct {
	Filename  string
	ClientRef string
	Body      []byte
}

type FileResult struct {
	File      model.FileUpload       `json:"file"`
	Duplicate bool                   `json:"duplicate,omitempty"`
	Trained   bool                   `json:"trained,omitempty"`
	Points    *progress.PointsResult `json:"points,omitempty"`
}

// UploadFile validates and stores the body, records the upload with a
// type-based summary, feeds text files to the chatbot and grants the upload
// award. A repeated client_ref returns the stored record untouched.
func (s *Service) UploadFile(ctx context.Context, userID string, req UploadRequest) (FileResult, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return FileResult{}, err
	}
	name := strings.TrimSpace(filepath.Base(req.Filename))
	if name == "" || name == "." || name == "/" {
		return FileResult{}, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	fileType, ok := acceptedTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		s.metrics.Upload("rejected")
		return FileResult{}, ErrUnsupportedFile
	}
	if len(req.Body) == 0 {
		s.metrics.Upload("rejected")
		return FileResult{}, ErrEmptyFile
	}
	if int64(len(req.Body)) > s.maxUploadBytes {
		s.metrics.Upload("rejected")
		return FileResult{}, ErrFileTooLarge
	}
	if s.blob == nil {
		return FileResult{}, ErrBlobUnavailable
	}
	defer s.lockUser(userID)()

	existing, found, err := s.repos.Files.FindByClientRef(ctx, userID, req.ClientRef)
	if err != nil {
		return FileResult{}, s.fail("find upload", userID, err)
	}
	if found {
		return FileResult{File: existing, Duplicate: true}, nil
	}

	key := blob.ObjectKey(userID, name)
	if err := s.blob.Put(ctx, key, req.Body, fileType); err != nil {
		s.metrics.Upload("failed")
		return FileResult{}, s.fail("store upload body", userID, err)
	}

	upload, outcome, err := s.repos.Files.Create(ctx, userID, progress.FileInput{
		ClientRef: req.ClientRef,
		Filename:  name,
		FilePath:  key,
		FileType:  fileType,
		FileSize:  int64(len(req.Body)),
		Summary:   Summarize(name, fileType, int64(len(req.Body))),
		Processed: true,
	})
	if err != nil {
		if delErr := s.blob.Delete(ctx, key); delErr != nil {
			s.logger.Warn("drop orphan upload body", zap.String("key", key), zap.Error(delErr))
		}
		s.metrics.Upload("failed")
		return FileResult{}, s.fail("record upload", userID, err)
	}
	s.metrics.Upload("ok")

	result := FileResult{File: upload}
	if fileType == "text/plain" && utf8.Valid(req.Body) {
		learned := s.bot.Train(chatbot.Document{
			ID:      upload.ID,
			Owner:   userID,
			Name:    name,
			Content: string(req.Body),
		})
		result.Trained = true
		s.logger.Info("chatbot trained from upload",
			zap.String("user_id", userID),
			zap.String("file", name),
			zap.Int("topics", learned),
		)
	}
	result.Points, err = s.applyAward(ctx, outcome)
	return result, err
}

// Summarize produces the short Arabic description shown next to an upload.
func Summarize(filename, fileType string, size int64) string {
	kb := (size + 512) / 1024
	switch {
	case strings.Contains(fileType, "pdf"):
		return fmt.Sprintf("ملف PDF: %s (%d كيلوبايت). يحتوي على محتوى أكاديمي مناسب للدراسة والمراجعة.", filename, kb)
	case strings.Contains(fileType, "presentation") || strings.Contains(fileType, "powerpoint"):
		return fmt.Sprintf("عرض تقديمي: %s (%d كيلوبايت). شرائح تعليمية مناسبة للمراجعة السريعة.", filename, kb)
	case strings.Contains(fileType, "word") || strings.Contains(fileType, "document"):
		return fmt.Sprintf("مستند Word: %s (%d كيلوبايت). مستند نصي يحتوي على معلومات دراسية مفصلة.", filename, kb)
	case strings.Contains(fileType, "text"):
		return fmt.Sprintf("ملف نصي: %s (%d كيلوبايت). ملف نص بسيط يحتوي على ملاحظات أو مراجع.", filename, kb)
	case strings.Contains(fileType, "image"):
		return fmt.Sprintf("صورة: %s (%d كيلوبايت). صورة تعليمية أو رسم بياني مناسب للمراجعة.", filename, kb)
	default:
		return fmt.Sprintf("ملف: %s (%d كيلوبايت). ملف متنوع يحتوي على محتوى تعليمي.", filename, kb)
	}
}

func (s *Service) ListFiles(ctx context.Context, userID string) ([]model.FileUpload, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	list, err := s.repos.Files.List(ctx, userID)
	if err != nil {
		return nil, s.fail("list files", userID, err)
	}
	return list, nil
}

// FileContent returns the record and its stored body.
func (s *Service) FileContent(ctx context.Context, userID, id string) (model.FileUpload, []byte, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return model.FileUpload{}, nil, err
	}
	upload, err := s.repos.Files.Get(ctx, userID, id)
	if errors.Is(err, progress.ErrNotFound) {
		return model.FileUpload{}, nil, ErrFileNotFound
	}
	if err != nil {
		return model.FileUpload{}, nil, s.fail("get file", userID, err)
	}
	if s.blob == nil {
		return model.FileUpload{}, nil, ErrBlobUnavailable
	}
	body, err := s.blob.Get(ctx, upload.FilePath)
	if errors.Is(err, blob.ErrNotFound) {
		return model.FileUpload{}, nil, ErrFileNotFound
	}
	if err != nil {
		return model.FileUpload{}, nil, s.fail("read upload body", userID, err)
	}
	return upload, body, nil
}

func (s *Service) UpdateFile(ctx context.Context, userID, id string, patch progress.FilePatch) (model.FileUpload, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return model.FileUpload{}, err
	}
	if err := s.check(patch); err != nil {
		return model.FileUpload{}, err
	}
	defer s.lockUser(userID)()

	upload, err := s.repos.Files.Update(ctx, userID, id, patch)
	if errors.Is(err, progress.ErrNotFound) {
		return model.FileUpload{}, ErrFileNotFound
	}
	if err != nil {
		return model.FileUpload{}, s.fail("update file", userID, err)
	}
	return upload, nil
}

// DeleteFile removes the record, then the body. A body that cannot be
// removed is logged and left behind.
func (s *Service) DeleteFile(ctx context.Context, userID, id string) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	defer s.lockUser(userID)()

	removed, err := s.repos.Files.Delete(ctx, userID, id)
	if errors.Is(err, progress.ErrNotFound) {
		return ErrFileNotFound
	}
	if err != nil {
		return s.fail("delete file", userID, err)
	}
	s.bot.Forget(removed.ID)
	s.dropBody(ctx, removed.FilePath)
	return nil
}

// RestoreTraining feeds every stored text upload back to the chatbot. The
// responder keeps documents in memory only, so this runs once at startup.
func (s *Service) RestoreTraining(ctx context.Context) (int, error) {
	if s.blob == nil {
		return 0, nil
	}
	keys, err := s.store.Keys(ctx, store.FilesKeyPrefix)
	if err != nil {
		return 0, s.fail("list upload keys", "", err)
	}
	restored := 0
	for _, key := range keys {
		userID := strings.TrimPrefix(key, store.FilesKeyPrefix)
		files, err := s.repos.Files.List(ctx, userID)
		if err != nil {
			return restored, s.fail("list uploads", userID, err)
		}
		for _, f := range files {
			if f.FileType != "text/plain" {
				continue
			}
			body, err := s.blob.Get(ctx, f.FilePath)
			if err != nil {
				s.logger.Warn("restore training document",
					zap.String("user_id", userID),
					zap.String("file_id", f.ID),
					zap.Error(err),
				)
				continue
			}
			if !utf8.Valid(body) {
				continue
			}
			s.bot.Train(chatbot.Document{ID: f.ID, Owner: userID, Name: f.Filename, Content: string(body)})
			restored++
		}
	}
	return restored, nil
}

func (s *Service) dropBody(ctx context.Context, key string) {
	if s.blob == nil || key == "" {
		return
	}
	if err := s.blob.Delete(ctx, key); err != nil {
		s.logger.Warn("delete upload body", zap.String("key", key), zap.Error(err))
	}
}

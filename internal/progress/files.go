package progress

import (
	"context"

	"chemlab/internal/model"
	"chemlab/internal/store"
)

type Files struct {
	base
}

type FileInput struct {
	ClientRef string `json:"client_ref,omitempty"`
	Filename  string `json:"filename"`
	FilePath  string `json:"file_path"`
	FileType  string `json:"file_type"`
	FileSize  int64  `json:"file_size"`
	Summary   string `json:"summary,omitempty"`
	Processed bool   `json:"processed"`
}

type FilePatch struct {
	Filename  *string `json:"filename,omitempty" validate:"omitempty,min=1,max=255"`
	Summary   *string `json:"summary,omitempty"`
	Processed *bool   `json:"processed,omitempty"`
}

func (f *Files) List(ctx context.Context, userID string) ([]model.FileUpload, error) {
	return loadList[model.FileUpload](ctx, f.st, store.FilesKey(userID))
}

func (f *Files) Get(ctx context.Context, userID, id string) (model.FileUpload, error) {
	list, err := f.List(ctx, userID)
	if err != nil {
		return model.FileUpload{}, err
	}
	idx := indexOf(list, func(item model.FileUpload) bool { return item.ID == id })
	if idx < 0 {
		return model.FileUpload{}, ErrNotFound
	}
	return list[idx], nil
}

// FindByClientRef reports the stored upload carrying ref, if any.
func (f *Files) FindByClientRef(ctx context.Context, userID, ref string) (model.FileUpload, bool, error) {
	if ref == "" {
		return model.FileUpload{}, false, nil
	}
	list, err := f.List(ctx, userID)
	if err != nil {
		return model.FileUpload{}, false, err
	}
	idx := indexOf(list, func(item model.FileUpload) bool { return item.ClientRef == ref })
	if idx < 0 {
		return model.FileUpload{}, false, nil
	}
	return list[idx], true, nil
}

func (f *Files) Create(ctx context.Context, userID string, in FileInput) (model.FileUpload, Outcome, error) {
	key := store.FilesKey(userID)
	list, err := loadList[model.FileUpload](ctx, f.st, key)
	if err != nil {
		return model.FileUpload{}, Outcome{}, err
	}
	if in.ClientRef != "" {
		if idx := indexOf(list, func(item model.FileUpload) bool { return item.ClientRef == in.ClientRef }); idx >= 0 {
			return list[idx], Outcome{Duplicate: true}, nil
		}
	}

	upload := model.FileUpload{
		ID:        f.newID(),
		UserID:    userID,
		ClientRef: in.ClientRef,
		Filename:  in.Filename,
		FilePath:  in.FilePath,
		FileType:  in.FileType,
		FileSize:  in.FileSize,
		Summary:   in.Summary,
		Processed: in.Processed,
		CreatedAt: f.now(),
	}
	list = append(list, upload)
	if err := saveDoc(ctx, f.st, key, list); err != nil {
		return model.FileUpload{}, Outcome{}, err
	}
	return upload, Outcome{Award: &Award{
		UserID: userID,
		Kind:   KindUpload,
		Points: PointsUploadFile,
		Reason: "رفع ملف: " + upload.Filename,
	}}, nil
}

func (f *Files) Update(ctx context.Context, userID, id string, patch FilePatch) (model.FileUpload, error) {
	key := store.FilesKey(userID)
	list, err := loadList[model.FileUpload](ctx, f.st, key)
	if err != nil {
		return model.FileUpload{}, err
	}
	idx := indexOf(list, func(item model.FileUpload) bool { return item.ID == id })
	if idx < 0 {
		return model.FileUpload{}, ErrNotFound
	}
	upload := list[idx]
	if patch.Filename != nil {
		upload.Filename = *patch.Filename
	}
	if patch.Summary != nil {
		upload.Summary = *patch.Summary
	}
	if patch.Processed != nil {
		upload.Processed = *patch.Processed
	}
	list[idx] = upload
	if err := saveDoc(ctx, f.st, key, list); err != nil {
		return model.FileUpload{}, err
	}
	return upload, nil
}

// Delete removes the record and returns it so the caller can drop the body.
func (f *Files) Delete(ctx context.Context, userID, id string) (model.FileUpload, error) {
	key := store.FilesKey(userID)
	list, err := loadList[model.FileUpload](ctx, f.st, key)
	if err != nil {
		return model.FileUpload{}, err
	}
	idx := indexOf(list, func(item model.FileUpload) bool { return item.ID == id })
	if idx < 0 {
		return model.FileUpload{}, ErrNotFound
	}
	removed := list[idx]
	list = append(list[:idx], list[idx+1:]...)
	if err := saveDoc(ctx, f.st, key, list); err != nil {
		return model.FileUpload{}, err
	}
	return removed, nil
}

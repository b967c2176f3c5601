package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/data-analyzer/internal/apperror"
	"github.com/sakif/data-analyzer/internal/handler"
	"github.com/sakif/data-analyzer/internal/model"
	"github.com/sakif/data-analyzer/internal/service"
)

// MockDatasetStore implements handler.DatasetStore with canned answers.
type MockDatasetStore struct {
	CapturedUserID  string
	CapturedName    string
	CapturedContent []byte

	ReturnDataset *model.Dataset
	ReturnPreview *service.DatasetPreview
	ReturnList    []model.Dataset
	ReturnErr     error
}

func (m *MockDatasetStore) Upload(_ context.Context, userID, name string, content []byte) (*model.Dataset, error) {
	m.CapturedUserID = userID
	m.CapturedName = name
	m.CapturedContent = content
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnDataset, nil
}

func (m *MockDatasetStore) GetByID(_ context.Context, userID, id string) (*model.Dataset, error) {
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnDataset, nil
}

func (m *MockDatasetStore) Preview(_ context.Context, userID, id string) (*service.DatasetPreview, error) {
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnPreview, nil
}

func (m *MockDatasetStore) List(_ context.Context, userID string, limit, offset int) ([]model.Dataset, error) {
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnList, nil
}

func (m *MockDatasetStore) Delete(_ context.Context, userID, id string) error {
	return m.ReturnErr
}

// multipartUpload builds a multipart/form-data request with one "file" field.
func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	assert.NoError(t, err)
	_, err = fw.Write([]byte(content))
	assert.NoError(t, err)
	assert.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDatasetHandler_HandleUpload(t *testing.T) {
	t.Run("valid upload", func(t *testing.T) {
		mock := &MockDatasetStore{
			ReturnDataset: &model.Dataset{ID: "ds-1", Name: "sales.csv", Rows: 2, Cols: 2},
		}
		h := handler.NewDatasetHandler(mock, testLogger)

		req := multipartUpload(t, "sales.csv", "product,sales\nWidget,120\nGadget,85\n")
		rr := do(h.HandleUpload, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "local", mock.CapturedUserID)
		assert.Equal(t, "sales.csv", mock.CapturedName)
		assert.Equal(t, []byte("product,sales\nWidget,120\nGadget,85\n"), mock.CapturedContent)

		var d model.Dataset
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&d))
		assert.Equal(t, "ds-1", d.ID)
		assert.Equal(t, 2, d.Rows)
	})

	t.Run("missing file field", func(t *testing.T) {
		h := handler.NewDatasetHandler(&MockDatasetStore{}, testLogger)

		req := httptest.NewRequest(http.MethodPost, "/api/datasets", bytes.NewBufferString("not multipart"))
		rr := do(h.HandleUpload, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejected CSV maps to 400", func(t *testing.T) {
		mock := &MockDatasetStore{ReturnErr: apperror.ValidationFailed("file", "file is not valid CSV")}
		h := handler.NewDatasetHandler(mock, testLogger)

		req := multipartUpload(t, "bad.csv", "a,b,c\n1,2\n")
		rr := do(h.HandleUpload, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var errRes handler.ErrorResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&errRes))
		assert.Equal(t, "validation_error", errRes.Error)
	})
}

func TestDatasetHandler_HandlePreview(t *testing.T) {
	mock := &MockDatasetStore{
		ReturnPreview: &service.DatasetPreview{
			Schema: "RangeIndex: 2 entries",
			Head:   "product sales\nWidget 120",
		},
	}
	h := handler.NewDatasetHandler(mock, testLogger)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/ds-1/preview", nil)
	req.SetPathValue("id", "ds-1")
	rr := do(h.HandlePreview, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var preview service.DatasetPreview
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&preview))
	assert.Contains(t, preview.Schema, "RangeIndex")
	assert.Contains(t, preview.Head, "Widget")
}

func TestDatasetHandler_HandleList(t *testing.T) {
	mock := &MockDatasetStore{
		ReturnList: []model.Dataset{{ID: "ds-1", Name: "sales.csv"}},
	}
	h := handler.NewDatasetHandler(mock, testLogger)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	rr := do(h.HandleList, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var list []model.Dataset
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestDatasetHandler_HandleDelete(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		h := handler.NewDatasetHandler(&MockDatasetStore{}, testLogger)

		req := httptest.NewRequest(http.MethodDelete, "/api/datasets/ds-1", nil)
		req.SetPathValue("id", "ds-1")
		rr := do(h.HandleDelete, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("not found", func(t *testing.T) {
		mock := &MockDatasetStore{ReturnErr: apperror.NotFound("dataset", "nope")}
		h := handler.NewDatasetHandler(mock, testLogger)

		req := httptest.NewRequest(http.MethodDelete, "/api/datasets/nope", nil)
		req.SetPathValue("id", "nope")
		rr := do(h.HandleDelete, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

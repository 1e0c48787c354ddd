package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/backend"
	"github.com/ayxworxfr/go_backoffice/internal/domain/params"
	"github.com/ayxworxfr/go_backoffice/internal/table"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brandRows() []backend.Record {
	return []backend.Record{
		{"id": "1", "name": "Acme", "description": "Anvils", "active": true},
		{"id": "2", "name": "Globex", "description": "Everything", "active": false},
	}
}

type rowsEnvelope struct {
	Code int `json:"code"`
	Data struct {
		Data    []map[string]any `json:"data"`
		Total   int              `json:"total"`
		Page    int              `json:"page"`
		PerPage int              `json:"per_page"`
		Search  string           `json:"search"`
		Phase   string           `json:"phase"`
		Error   string           `json:"error"`
	} `json:"data"`
}

func decodeRows(t *testing.T, raw []byte) rowsEnvelope {
	t.Helper()
	var env rowsEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestList_RendersRows(t *testing.T) {
	h := newHarness(t, userWith("brands.view"), nil)
	h.backend.rows = brandRows()

	w := h.get("/brands")

	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.Contains(t, body(w), "Acme")
	assert.Contains(t, body(w), "Globex")
	assert.NotContains(t, body(w), "?modal=create", "no create button without brands.create")
	assert.Equal(t, 1, h.backend.listCalls())

	// 同一会话再次打开页面复用 loader
	h.get("/brands")
	assert.Equal(t, 1, h.backend.listCalls())
}

func TestList_RequiresViewPermission(t *testing.T) {
	h := newHarness(t, userWith("users.view"), nil)

	w := h.get("/brands")

	assert.Equal(t, http.StatusFound, w.Result().StatusCode())
	assert.Equal(t, "/unauthorized", location(w))
	assert.Zero(t, h.backend.listCalls())
}

func TestRows_SearchAndPaging(t *testing.T) {
	h := newHarness(t, userWith("brands.view"), nil)
	h.backend.rows = brandRows()

	w := h.get("/brands/rows?search=glob", jsonAccept)
	env := decodeRows(t, w.Result().Body())
	assert.Equal(t, "glob", env.Data.Search)
	assert.Equal(t, 1, env.Data.Total)
	assert.Equal(t, "loaded", env.Data.Phase)
	require.Len(t, env.Data.Data, 1)
	assert.Equal(t, "Globex", env.Data.Data[0]["name"])

	// 未带 search 时保留上次的搜索词
	w = h.get("/brands/rows?per_page=25", jsonAccept)
	env = decodeRows(t, w.Result().Body())
	assert.Equal(t, "glob", env.Data.Search)
	assert.Equal(t, 25, env.Data.PerPage)
	assert.Equal(t, 1, env.Data.Page)

	w = h.get("/brands/rows?search=acme")
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.Contains(t, body(w), "Acme")
	assert.NotContains(t, body(w), "Globex")
}

func TestRows_BackendError(t *testing.T) {
	h := newHarness(t, userWith("brands.view"), nil)
	h.backend.listErr = &backend.APIError{Status: http.StatusInternalServerError, Message: "Database unavailable."}

	env := decodeRows(t, h.get("/brands/rows", jsonAccept).Result().Body())

	assert.Equal(t, "errored", env.Data.Phase)
	assert.Equal(t, "Database unavailable.", env.Data.Error)
}

func TestList_ExpiredTokenRedirectsToLogin(t *testing.T) {
	h := newHarness(t, userWith("brands.view"), nil)
	h.backend.listErr = &backend.APIError{Status: http.StatusUnauthorized}

	w := h.get("/brands?page=2")

	assert.Equal(t, http.StatusFound, w.Result().StatusCode())
	assert.Equal(t, "/login?next="+url.QueryEscape("/brands?page=2"), location(w))
	assert.Contains(t, h.auth.invalidated, testSID)
	_, ok := responseCookie(w, FlashCookie)
	assert.True(t, ok, "the expiry message is flashed on the login page")
}

func TestTrash_RefetchesTable(t *testing.T) {
	h := newHarness(t, userWith("brands.view", "brands.delete"), nil)
	h.backend.rows = brandRows()
	h.get("/brands")
	require.Equal(t, 1, h.backend.listCalls())

	w := h.post("/brands/1/trash", "")
	assert.Equal(t, http.StatusSeeOther, w.Result().StatusCode())
	assert.Equal(t, "/brands", location(w))
	flash, ok := responseCookie(w, FlashCookie)
	require.True(t, ok)
	assert.Equal(t, url.QueryEscape("success|Brand moved to trash."), flash)

	env := decodeRows(t, h.get("/brands/rows", jsonAccept).Result().Body())
	assert.Equal(t, 2, h.backend.listCalls())
	require.Len(t, env.Data.Data, 2)
	assert.NotNil(t, env.Data.Data[0]["deleted_at"])

	w = h.post("/brands/1/restore", "", jsonAccept)
	assert.Contains(t, body(w), `"code":100001`)
	env = decodeRows(t, h.get("/brands/rows", jsonAccept).Result().Body())
	assert.Nil(t, env.Data.Data[0]["deleted_at"])
}

func TestMutate(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		path        string
		status      int
		location    string
	}{
		{"delete without permission", []string{"brands.view", "brands.edit"}, "/brands/1/delete", http.StatusFound, "/unauthorized"},
		{"trash on hard-delete resource", []string{"roles.view", "roles.delete"}, "/roles/1/trash", http.StatusNotFound, ""},
		{"delete missing record", []string{"brands.view", "brands.delete"}, "/brands/99/delete", http.StatusSeeOther, "/brands"},
		{"delete", []string{"brands.view", "brands.delete"}, "/brands/2/delete", http.StatusSeeOther, "/brands"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, userWith(tt.permissions...), nil)
			h.backend.rows = brandRows()

			w := h.post(tt.path, "")
			assert.Equal(t, tt.status, w.Result().StatusCode())
			assert.Equal(t, tt.location, location(w))
		})
	}
}

func TestMutate_FailureIsFlashed(t *testing.T) {
	h := newHarness(t, userWith("brands.view", "brands.delete"), nil)

	w := h.post("/brands/99/delete", "")

	flash, ok := responseCookie(w, FlashCookie)
	require.True(t, ok)
	assert.Equal(t, url.QueryEscape("danger|Record not found."), flash)

	// 下一次页面渲染显示并清除提示
	w = h.get("/brands", ut.Header{Key: "Cookie", Value: FlashCookie + "=" + flash})
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.Contains(t, body(w), "Record not found.")
}

func TestExport(t *testing.T) {
	tests := []struct {
		name     string
		rows     []backend.Record
		format   string
		status   int
		contains string
	}{
		{"empty dataset", nil, "csv", http.StatusBadRequest, "There is no data to export."},
		{"unknown format", brandRows(), "docx", http.StatusBadRequest, "unsupported export format"},
		{"csv", brandRows(), "csv", http.StatusOK, "Acme"},
		{"print", brandRows(), "print", http.StatusOK, "Globex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, userWith("brands.view"), nil)
			h.backend.rows = tt.rows

			w := h.get("/brands/export?format=" + tt.format)
			assert.Equal(t, tt.status, w.Result().StatusCode())
			assert.Contains(t, body(w), tt.contains)
		})
	}
}

func TestExport_CSVIsAttachment(t *testing.T) {
	h := newHarness(t, userWith("brands.view"), nil)
	h.backend.rows = brandRows()

	w := h.get("/brands/export?format=csv")

	assert.Contains(t, string(w.Result().Header.Peek("Content-Disposition")), "attachment")
}

func TestModal(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		query       string
		status      int
		contains    string
	}{
		{"create without permission", []string{"brands.view"}, "?modal=create", http.StatusFound, ""},
		{"create", []string{"brands.view", "brands.create"}, "?modal=create", http.StatusOK, "New Brand"},
		{"edit", []string{"brands.view", "brands.edit"}, "?modal=edit&id=1", http.StatusOK, "Edit Brand"},
		{"view", []string{"brands.view"}, "?modal=view&id=2", http.StatusOK, "Brand details"},
		{"missing record", []string{"brands.view", "brands.edit"}, "?modal=edit&id=99", http.StatusNotFound, ""},
		{"unknown modal", []string{"brands.view"}, "?modal=explode", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, userWith(tt.permissions...), nil)
			h.backend.rows = brandRows()

			w := h.get("/brands" + tt.query)
			assert.Equal(t, tt.status, w.Result().StatusCode())
			if tt.status == http.StatusFound {
				assert.Equal(t, "/unauthorized", location(w))
			}
			assert.Contains(t, body(w), tt.contains)
		})
	}
}

func TestCreate(t *testing.T) {
	t.Run("local validation", func(t *testing.T) {
		h := newHarness(t, userWith("brands.view", "brands.create"), nil)

		w := h.post("/brands", "name=&description=x")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode())
		assert.Contains(t, body(w), "Name is required.")
		assert.Empty(t, h.backend.created)
	})

	t.Run("backend validation", func(t *testing.T) {
		h := newHarness(t, userWith("brands.view", "brands.create"), nil)
		h.backend.saveErr = &backend.ValidationError{
			Message: "The given data was invalid.",
			Errors:  map[string][]string{"name": {"The name has already been taken."}},
		}

		w := h.post("/brands", "name=Acme")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode())
		assert.Contains(t, body(w), "The name has already been taken.")
		assert.Contains(t, body(w), "The given data was invalid.")

		w = h.post("/brands", "name=Acme", jsonAccept)
		assert.Contains(t, body(w), `"code":200010`)
		assert.Contains(t, body(w), "The name has already been taken.")
	})

	t.Run("backend failure keeps the modal open", func(t *testing.T) {
		h := newHarness(t, userWith("brands.view", "brands.create"), nil)
		h.backend.saveErr = &backend.APIError{Status: http.StatusInternalServerError, Message: "Storage is full."}

		w := h.post("/brands", "name=Acme")
		assert.Equal(t, http.StatusOK, w.Result().StatusCode())
		assert.Contains(t, body(w), "Storage is full.")
		assert.Contains(t, body(w), "New Brand")
	})

	t.Run("success", func(t *testing.T) {
		h := newHarness(t, userWith("brands.view", "brands.create"), nil)

		w := h.post("/brands", "name=Acme&description=Anvils&active=true")
		assert.Equal(t, http.StatusSeeOther, w.Result().StatusCode())
		assert.Equal(t, "/brands", location(w))
		require.Len(t, h.backend.created, 1)
		assert.Equal(t, "Acme", h.backend.created[0]["name"])
		assert.Equal(t, true, h.backend.created[0]["active"])

		flash, ok := responseCookie(w, FlashCookie)
		require.True(t, ok)
		assert.Equal(t, url.QueryEscape("success|Brand created."), flash)
	})

	t.Run("forbidden", func(t *testing.T) {
		h := newHarness(t, userWith("brands.view"), nil)

		w := h.post("/brands", "name=Acme", jsonAccept)
		assert.Contains(t, body(w), `"code":200004`)
		assert.Empty(t, h.backend.created)
	})
}

func TestCreatePurchaseOrder(t *testing.T) {
	perms := []string{"purchase-orders.view", "purchase-orders.create"}

	t.Run("requires lines", func(t *testing.T) {
		h := newHarness(t, userWith(perms...), nil)

		w := h.post("/purchase-orders", "supplier_id=1&order_date=2024-05-01&status=draft")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode())
		assert.Contains(t, body(w), "Add at least one line")
		assert.Empty(t, h.backend.created)
	})

	t.Run("line without product", func(t *testing.T) {
		h := newHarness(t, userWith(perms...), nil)

		form := url.Values{
			"supplier_id":          {"1"},
			"order_date":           {"2024-05-01"},
			"status":               {"draft"},
			"lines[0][quantity]":   {"2"},
			"lines[0][unit_price]": {"9.50"},
			"lines[1][product_id]": {""},
			"lines[1][unit_price]": {""},
			"lines[1][quantity]":   {""},
		}
		w := h.post("/purchase-orders", form.Encode(), jsonAccept)
		assert.Contains(t, body(w), `"code":200010`)
		assert.Contains(t, body(w), "lines.0.product_id")
		assert.Empty(t, h.backend.created)
	})

	t.Run("success", func(t *testing.T) {
		h := newHarness(t, userWith(perms...), nil)

		form := url.Values{
			"supplier_id":          {"1"},
			"order_date":           {"2024-05-01"},
			"status":               {"draft"},
			"lines[0][product_id]": {"1"},
			"lines[0][quantity]":   {"2"},
			"lines[0][unit_price]": {"9.50"},
		}
		w := h.post("/purchase-orders", form.Encode())
		assert.Equal(t, http.StatusSeeOther, w.Result().StatusCode())
		require.Len(t, h.backend.created, 1)
		lines, ok := h.backend.created[0]["lines"].([]params.PurchaseOrderLine)
		require.True(t, ok)
		require.Len(t, lines, 1)
		assert.Equal(t, "19", lines[0].Quantity.Mul(lines[0].UnitPrice).String())
	})
}

func TestApply_LastSearchWins(t *testing.T) {
	f := table.FetcherFunc(func(_ context.Context, q table.Query) (*table.Page, error) {
		return &table.Page{Data: []table.Row{{"search": q.Search}}, Total: 1}, nil
	})
	loader := table.NewLoader(f, "/brands", table.Options{Debounce: 100 * time.Millisecond})
	defer loader.Close()
	loader.Refetch()

	h := &ResourceHandler{}
	glob, empty := "glob", ""
	h.apply(loader, &params.ListRequest{Search: &glob})
	h.apply(loader, &params.ListRequest{Search: &empty})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	state, err := loader.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", state.Query.Search)
}

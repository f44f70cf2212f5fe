package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListAll_FollowsPageTokens(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("pageToken")
		pages = append(pages, token)
		w.Header().Set("Content-Type", "application/json")
		switch token {
		case "":
			fmt.Fprint(w, `{"files":[{"id":"f1","name":"a.pdf"}],"nextPageToken":"p2"}`)
		case "p2":
			fmt.Fprint(w, `{"files":[{"id":"f2","name":"b.pdf"}]}`)
		default:
			t.Errorf("unexpected page token %q", token)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	files, err := c.ListAll(context.Background(), Query{Q: "trashed = false"})
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(files) != 2 || files[0].ID != "f1" || files[1].ID != "f2" {
		t.Errorf("files = %+v", files)
	}
	if len(pages) != 2 {
		t.Errorf("requested %d pages, want 2", len(pages))
	}
}

func TestCreateFolder(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPost || r.URL.Path != "/files" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"fold1","name":"Receipts","mimeType":"application/vnd.google-apps.folder"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	f, err := c.CreateFolder(context.Background(), "Receipts", "")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if f.ID != "fold1" || !f.IsFolder() {
		t.Errorf("folder = %+v", f)
	}
	if gotBody["mimeType"] != FolderMimeType {
		t.Errorf("mimeType = %v", gotBody["mimeType"])
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestMoveFile_RemovesOldParents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `{"id":"f1","name":"a.pdf","parents":["old1","old2"]}`)
		case r.Method == http.MethodPatch:
			q := r.URL.Query()
			if q.Get("addParents") != "new" {
				t.Errorf("addParents = %q", q.Get("addParents"))
			}
			if q.Get("removeParents") != "old1,old2" {
				t.Errorf("removeParents = %q", q.Get("removeParents"))
			}
			fmt.Fprint(w, `{"id":"f1","name":"a.pdf","parents":["new"]}`)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	f, err := c.MoveFile(context.Background(), "f1", "new")
	if err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if len(f.Parents) != 1 || f.Parents[0] != "new" {
		t.Errorf("parents = %v", f.Parents)
	}
}

func TestHasChildren(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageSize") != "1" {
			t.Errorf("pageSize = %q, want 1", r.URL.Query().Get("pageSize"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"files":[{"id":"child"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	ok, err := c.HasChildren(context.Background(), "fold1")
	if err != nil {
		t.Fatalf("HasChildren: %v", err)
	}
	if !ok {
		t.Error("expected HasChildren=true")
	}
}

func TestErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"notFound"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if _, err := c.GetFile(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}

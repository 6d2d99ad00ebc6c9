package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/kitako/incomeproof/internal/api/middleware"
)

// NewRouter assembles the HTTP routes. Everything under /api requires the
// acting user except the verification and download paths, which authorize by
// code or token instead.
func NewRouter(uploads *UploadsHandler, txs *TransactionsHandler, aiJobs *AIJobsHandler, reports *ReportsHandler) http.Handler {
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.Auth(h)
	}

	// Uploads
	mux.Handle("/api/uploads", authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			uploads.List(w, r)
		case http.MethodPost:
			uploads.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))
	mux.Handle("/api/uploads/", authed(func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, "/api/uploads/")
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			uploads.Get(w, r, parts[0])
		case len(parts) == 1 && r.Method == http.MethodDelete:
			uploads.Delete(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "transactions" && r.Method == http.MethodGet:
			uploads.ListTransactions(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "review" && r.Method == http.MethodPost:
			uploads.Review(w, r, parts[0])
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	}))

	// Transactions
	mux.Handle("/api/transactions", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			txs.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))
	mux.Handle("/api/transactions/summary", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			txs.Summary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))
	mux.Handle("/api/transactions/bulk-update", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			txs.BulkUpdate(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))
	mux.Handle("/api/transactions/categorize", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			txs.Categorize(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))
	mux.Handle("/api/transactions/summarize", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			txs.Summarize(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))
	mux.Handle("/api/transactions/detect-anomalies", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			txs.DetectAnomalies(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))
	mux.Handle("/api/transactions/", authed(func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, "/api/transactions/")
		if len(parts) != 1 {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		switch r.Method {
		case http.MethodGet:
			txs.Get(w, r, parts[0])
		case http.MethodPatch, http.MethodPut:
			txs.Update(w, r, parts[0])
		case http.MethodDelete:
			txs.Delete(w, r, parts[0])
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))

	// AI jobs
	mux.Handle("/api/ai-jobs", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			aiJobs.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))
	mux.Handle("/api/ai-jobs/", authed(func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, "/api/ai-jobs/")
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			aiJobs.Get(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
			aiJobs.Cancel(w, r, parts[0])
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	}))

	// Reports. The download subpath stays public; everything else under the
	// subtree needs the acting user.
	mux.Handle("/api/reports", authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			reports.List(w, r)
		case http.MethodPost:
			reports.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}))
	mux.HandleFunc("/api/reports/", func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, "/api/reports/")
		if len(parts) == 2 && parts[1] == "download" && r.Method == http.MethodGet {
			reports.Download(w, r, parts[0])
			return
		}

		authed(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case len(parts) == 1 && r.Method == http.MethodGet:
				reports.Get(w, r, parts[0])
			case len(parts) == 1 && r.Method == http.MethodDelete:
				reports.Delete(w, r, parts[0])
			case len(parts) == 2 && parts[1] == "signature" && r.Method == http.MethodPost:
				reports.SubmitSignature(w, r, parts[0])
			default:
				middleware.WriteError(w, http.StatusNotFound, "Not found")
			}
		}).ServeHTTP(w, r)
	})

	// Admin
	mux.Handle("/api/admin/reports/", authed(func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, "/api/admin/reports/")
		if len(parts) == 2 && parts[1] == "signature" && r.Method == http.MethodPost {
			reports.DecideSignature(w, r, parts[0])
			return
		}
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	}))

	// Public verification
	mux.HandleFunc("/api/verify/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		code := strings.TrimPrefix(r.URL.Path, "/api/verify/")
		if code == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Verification code is required")
			return
		}
		reports.Verify(w, r, code)
	})

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}

func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

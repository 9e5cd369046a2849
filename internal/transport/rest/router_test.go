package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/internal/auth"
	"github.com/frahmantamala/kakeibo/internal/auth/sqlxstore"
	"github.com/frahmantamala/kakeibo/internal/category"
	categoryStore "github.com/frahmantamala/kakeibo/internal/category/gormstore"
	"github.com/frahmantamala/kakeibo/internal/database"
	"github.com/frahmantamala/kakeibo/internal/expense"
	"github.com/frahmantamala/kakeibo/internal/expense/gormstore"
	"github.com/frahmantamala/kakeibo/internal/session"
	"github.com/frahmantamala/kakeibo/internal/transport/rest"
	"github.com/frahmantamala/kakeibo/pkg/logger"
	"github.com/frahmantamala/kakeibo/pkg/ratelimit"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

const adminPassword = "r246"

type apiClient struct {
	server *httptest.Server
	http   *http.Client
}

func (c *apiClient) do(method, path string, body any) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(raw)
		}
	}

	req, err := http.NewRequest(method, c.server.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, raw
}

func (c *apiClient) login(password string) *http.Response {
	resp, _ := c.do(http.MethodPost, "/api/auth/login", map[string]string{"password": password})
	return resp
}

func errorMessage(raw []byte) string {
	var body map[string]string
	Expect(json.Unmarshal(raw, &body)).To(Succeed())
	Expect(body).To(HaveKey("error"))
	return body["error"]
}

func decodeExpense(raw []byte) expense.Expense {
	var exp expense.Expense
	Expect(json.Unmarshal(raw, &exp)).To(Succeed())
	return exp
}

func decodeExpenses(raw []byte) []expense.Expense {
	var list []expense.Expense
	Expect(json.Unmarshal(raw, &list)).To(Succeed())
	return list
}

// downStore is a session store whose backend is unreachable.
type downStore struct{ *session.MemoryStore }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

var _ = Describe("Router", func() {
	var (
		client   *apiClient
		sessions session.Store
		ctx      context.Context
	)

	newClient := func() *apiClient {
		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		return &apiClient{server: client.server, http: &http.Client{Jar: jar}}
	}

	setup := func(store session.Store) {
		ctx = context.Background()
		lg := logger.Discard()

		gdb, err := database.Open(internal.DatabaseConfig{
			Driver:          database.DriverSQLite,
			Source:          ":memory:",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: time.Hour,
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := gdb.DB()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(sqlDB.Close)
		Expect(database.Migrate(ctx, sqlDB, database.DriverSQLite, false, lg)).To(Succeed())

		sessions = store
		authService := auth.NewService(
			sqlxstore.NewCredentialRepository(sqlx.NewDb(sqlDB, database.SQLXDriverName(database.DriverSQLite))),
			sessions,
			auth.Options{DefaultPassword: adminPassword, BCryptCost: bcrypt.MinCost, SessionTTL: 30 * time.Minute},
			lg,
		)
		created, err := authService.EnsureDefaultUser(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())

		cookies := session.NewCookieCodec(session.CookieOptions{
			Name:   internal.DefaultSessionCookie,
			Secret: "router-test-secret-at-least-32-bytes-long",
		})

		router := rest.NewRouter(rest.Dependencies{
			AuthHandler:    auth.NewHandler(authService, cookies, false, lg),
			ExpenseHandler: expense.NewHandler(expense.NewService(gormstore.NewExpenseRepository(gdb), lg), lg),
			CategoryHandler: category.NewHandler(
				category.NewService(categoryStore.NewCategoryRepository(gdb), lg), lg),
			HealthChecks: map[string]rest.CheckFunc{
				"database":      sqlDB.PingContext,
				"session_store": sessions.Ping,
			},
			GlobalLimiter: ratelimit.New(ratelimit.Config{Max: 100, Window: 15 * time.Minute}),
			LoginLimiter:  ratelimit.New(ratelimit.Config{Max: 5, Window: 15 * time.Minute}),
			Logger:        lg,
		})

		server := httptest.NewServer(router)
		DeferCleanup(server.Close)

		client = &apiClient{server: server}
		client = newClient()
	}

	BeforeEach(func() {
		setup(session.NewMemoryStore())
	})

	Describe("authentication", func() {
		It("reports an anonymous status without a session", func() {
			resp, raw := client.do(http.MethodGet, "/api/auth/status", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(raw).To(MatchJSON(`{"authenticated":false,"user":null}`))
		})

		It("logs in with the default password and reports the user", func() {
			resp, raw := client.do(http.MethodPost, "/api/auth/login", map[string]string{"password": adminPassword})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(raw).To(MatchJSON(`{"success":true,"message":"Login successful","user":{"username":"admin"}}`))

			var cookie *http.Cookie
			for _, c := range resp.Cookies() {
				if c.Name == internal.DefaultSessionCookie {
					cookie = c
				}
			}
			Expect(cookie).NotTo(BeNil())
			Expect(cookie.HttpOnly).To(BeTrue())
			Expect(cookie.MaxAge).To(BeNumerically("~", 1800, 1))

			resp, raw = client.do(http.MethodGet, "/api/auth/status", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(raw).To(MatchJSON(`{"authenticated":true,"user":{"id":1,"username":"admin"}}`))
		})

		It("rejects a wrong password without creating a session", func() {
			resp, raw := client.do(http.MethodPost, "/api/auth/login", map[string]string{"password": "nope"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(errorMessage(raw)).To(Equal("Invalid password"))

			resp, _ = client.do(http.MethodGet, "/api/expenses", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("requires a password", func() {
			resp, raw := client.do(http.MethodPost, "/api/auth/login", map[string]string{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(errorMessage(raw)).To(Equal("Password is required"))

			resp, raw = client.do(http.MethodPost, "/api/auth/login", "{not json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(errorMessage(raw)).To(Equal("Invalid request body"))
		})

		It("limits login attempts to five per window, even with the right password", func() {
			for i := 0; i < 5; i++ {
				Expect(client.login("wrong").StatusCode).To(Equal(http.StatusUnauthorized))
			}

			resp, raw := client.do(http.MethodPost, "/api/auth/login", map[string]string{"password": adminPassword})
			Expect(resp.StatusCode).To(Equal(http.StatusTooManyRequests))
			Expect(errorMessage(raw)).To(Equal("Too many login attempts, please try again later"))
			Expect(resp.Header.Get("Retry-After")).NotTo(BeEmpty())

			resp, _ = client.do(http.MethodGet, "/api/auth/status", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK), "other endpoints are not affected")
		})

		It("logs out idempotently and invalidates the session", func() {
			Expect(client.login(adminPassword).StatusCode).To(Equal(http.StatusOK))

			resp, raw := client.do(http.MethodPost, "/api/auth/logout", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(raw).To(MatchJSON(`{"success":true,"message":"Logged out successfully"}`))

			resp, _ = client.do(http.MethodGet, "/api/expenses", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			_, raw = client.do(http.MethodGet, "/api/auth/status", nil)
			Expect(raw).To(MatchJSON(`{"authenticated":false,"user":null}`))

			resp, _ = client.do(http.MethodPost, "/api/auth/logout", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects a forged session cookie", func() {
			req, err := http.NewRequest(http.MethodGet, client.server.URL+"/api/expenses", nil)
			Expect(err).NotTo(HaveOccurred())
			req.AddCookie(&http.Cookie{Name: internal.DefaultSessionCookie, Value: "not-a-signed-token"})

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("keeps sessions of separate clients apart", func() {
			other := newClient()
			Expect(client.login(adminPassword).StatusCode).To(Equal(http.StatusOK))

			resp, _ := other.do(http.MethodGet, "/api/expenses", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("expenses", func() {
		It("requires authentication for every expense route", func() {
			for _, route := range []struct{ method, path string }{
				{http.MethodGet, "/api/expenses"},
				{http.MethodPost, "/api/expenses"},
				{http.MethodPut, "/api/expenses/1"},
				{http.MethodDelete, "/api/expenses/1"},
				{http.MethodGet, "/api/categories"},
			} {
				resp, raw := client.do(route.method, route.path, nil)
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized), route.method+" "+route.path)
				Expect(errorMessage(raw)).To(Equal("Authentication required"))
			}
		})

		Context("when logged in", func() {
			BeforeEach(func() {
				Expect(client.login(adminPassword).StatusCode).To(Equal(http.StatusOK))
			})

			create := func(date, category string, amount int) expense.Expense {
				resp, raw := client.do(http.MethodPost, "/api/expenses", map[string]any{
					"date": date, "category": category, "item_name": "item", "store": "shop", "amount": amount,
				})
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				return decodeExpense(raw)
			}

			It("creates, lists, filters, and deletes expenses", func() {
				march := create("2024-03-15", "food", 1200)
				Expect(march.ID).To(BeNumerically(">", 0))
				Expect(march.ItemName).To(Equal("item"))
				Expect(march.CreatedAt).To(BeTemporally("==", march.UpdatedAt))

				create("2024-04-01", "rent", 80000)
				create("2024-03-20", "transport", 300)

				resp, raw := client.do(http.MethodGet, "/api/expenses", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				all := decodeExpenses(raw)
				Expect(all).To(HaveLen(3))
				Expect(all[0].Date).To(Equal("2024-04-01"))
				Expect(all[2].Date).To(Equal("2024-03-15"))

				resp, raw = client.do(http.MethodGet, "/api/expenses?year=2024&month=3", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				filtered := decodeExpenses(raw)
				Expect(filtered).To(HaveLen(2))
				for _, e := range filtered {
					Expect(e.Date).To(HavePrefix("2024-03"))
				}

				resp, _ = client.do(http.MethodGet, "/api/expenses?year=2024", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				resp, raw = client.do(http.MethodDelete, fmt.Sprintf("/api/expenses/%d", march.ID), nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(raw).To(MatchJSON(`{"success":true,"message":"Expense deleted successfully"}`))

				resp, raw = client.do(http.MethodGet, "/api/expenses?year=2024&month=03", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(decodeExpenses(raw)).To(HaveLen(1))

				resp, _ = client.do(http.MethodDelete, fmt.Sprintf("/api/expenses/%d", march.ID), nil)
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})

			It("summarizes spending per category for a month", func() {
				create("2024-03-15", "food", 1200)
				create("2024-03-16", "food", 800)
				create("2024-03-20", "transport", 300)
				create("2024-04-01", "rent", 80000)

				resp, raw := client.do(http.MethodGet, "/api/categories?year=2024&month=3", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(raw).To(MatchJSON(`{
					"categories": [
						{"name": "food", "expense_count": 2, "total_amount": 2000},
						{"name": "transport", "expense_count": 1, "total_amount": 300}
					],
					"total_amount": 2300
				}`))
			})

			It("returns an empty array when nothing is recorded", func() {
				resp, raw := client.do(http.MethodGet, "/api/expenses", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(raw).To(MatchJSON(`[]`))
			})

			It("rejects a malformed month filter", func() {
				resp, raw := client.do(http.MethodGet, "/api/expenses?year=24&month=13", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(errorMessage(raw)).NotTo(BeEmpty())
			})

			It("validates the expense body before storing anything", func() {
				for _, body := range []map[string]any{
					{"category": "food", "amount": 100},
					{"date": "2024-03-15", "amount": 100},
					{"date": "2024-03-15", "category": "food", "amount": 0},
					{"date": "2024-03-15", "category": "food", "amount": -5},
					{"date": "15/03/2024", "category": "food", "amount": 100},
					{"date": "2024-03-15", "category": strings.Repeat("x", 101), "amount": 100},
				} {
					resp, _ := client.do(http.MethodPost, "/api/expenses", body)
					Expect(resp.StatusCode).To(Equal(http.StatusBadRequest), fmt.Sprint(body))
				}

				resp, raw := client.do(http.MethodGet, "/api/expenses", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(raw).To(MatchJSON(`[]`))
			})

			It("overwrites every mutable field on update", func() {
				original := create("2024-03-15", "food", 1200)

				resp, raw := client.do(http.MethodPut, fmt.Sprintf("/api/expenses/%d", original.ID), map[string]any{
					"date": "2024-03-16", "category": "groceries", "amount": 1500,
				})
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				updated := decodeExpense(raw)
				Expect(updated.ID).To(Equal(original.ID))
				Expect(updated.Date).To(Equal("2024-03-16"))
				Expect(updated.Category).To(Equal("groceries"))
				Expect(updated.ItemName).To(BeEmpty())
				Expect(updated.Store).To(BeEmpty())
				Expect(updated.Amount).To(Equal(int64(1500)))
				Expect(updated.CreatedAt).To(BeTemporally("==", original.CreatedAt))
				Expect(updated.UpdatedAt).To(BeTemporally(">=", original.UpdatedAt))
			})

			It("returns 404 when updating or deleting a missing expense", func() {
				body := map[string]any{"date": "2024-03-16", "category": "food", "amount": 1}

				resp, raw := client.do(http.MethodPut, "/api/expenses/999", body)
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				Expect(errorMessage(raw)).To(Equal("Expense not found"))

				resp, _ = client.do(http.MethodDelete, "/api/expenses/abc", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("routing", func() {
		It("answers unknown routes with a JSON 404", func() {
			resp, raw := client.do(http.MethodGet, "/api/nope", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(errorMessage(raw)).NotTo(BeEmpty())

			resp, _ = client.do(http.MethodPatch, "/api/auth/status", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("sets security headers and a trace id on every response", func() {
			resp, _ := client.do(http.MethodGet, "/api/ping", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Security-Policy")).To(ContainSubstring("default-src 'self'"))
			Expect(resp.Header.Get("X-Trace-ID")).NotTo(BeEmpty())
			Expect(resp.Header.Get("RateLimit-Limit")).To(Equal("100"))
		})

		It("serves the OpenAPI document", func() {
			resp, raw := client.do(http.MethodGet, "/openapi.yml", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(raw)).To(HavePrefix("openapi: 3.0.3"))
		})

		It("reports healthy components", func() {
			resp, raw := client.do(http.MethodGet, "/api/health", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var health rest.HealthResponse
			Expect(json.Unmarshal(raw, &health)).To(Succeed())
			Expect(health.Status).To(Equal(rest.HealthHealthy))
			Expect(health.Components).To(HaveKey("database"))
			Expect(health.Components).To(HaveKey("session_store"))
		})
	})

	Describe("health with a failing session store", func() {
		BeforeEach(func() {
			setup(downStore{session.NewMemoryStore()})
		})

		It("returns 503 without leaking the failure detail", func() {
			resp, raw := client.do(http.MethodGet, "/api/health", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(string(raw)).NotTo(ContainSubstring("connection refused"))

			var health rest.HealthResponse
			Expect(json.Unmarshal(raw, &health)).To(Succeed())
			Expect(health.Components["session_store"].Status).To(Equal(rest.HealthUnhealthy))
			Expect(health.Components["database"].Status).To(Equal(rest.HealthHealthy))
		})
	})
})

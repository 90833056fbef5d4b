package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"duit/internal/advisor"
	"duit/internal/core"
	"duit/internal/log"
	"duit/internal/session"
)

type accountView struct {
	core.Account
	Balance int64
}

type basePage struct {
	Owner  string
	Active string
	Error  string
}

type dashboardPage struct {
	basePage
	Summary       core.MonthSummary
	BudgetPercent float64
	BudgetOver    bool
	Accounts      []accountView
	Categories    []core.Category
	Recent        []core.Transaction
	Today         time.Time
	Suggestion    *core.FoodItem
	SuggestionFor *core.Transaction
}

type historyPage struct {
	basePage
	Transactions []core.Transaction
	Accounts     []core.Account
	Categories   []core.Category
}

type accountsPage struct {
	basePage
	Accounts []accountView
}

type categoriesPage struct {
	basePage
	Categories []core.Category
}

type budgetRow struct {
	Category core.Category
	Amount   int64
}

type budgetPage struct {
	basePage
	Rows          []budgetRow
	FoodExpense   int64
	FoodBudget    int64
	BudgetPercent float64
	BudgetOver    bool
}

type profilePage struct {
	basePage
	Profile core.HealthProfile
	Diets   []core.DietPreference
}

type advicePage struct {
	basePage
	Advice  *advisor.Advice
	Notice  string
	Enabled bool
}

type loginPage struct {
	Error string
}

func (s *Server) base(r *http.Request, store *session.Store, active string) basePage {
	return basePage{
		Owner:  store.Owner(),
		Active: active,
		Error:  r.URL.Query().Get("err"),
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(ownerCookie); err == nil && cookie.Value != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "login.html", loginPage{Error: r.URL.Query().Get("err")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	owner := sanitizeInput(r.FormValue("owner"))
	if owner == "" || len(owner) > 64 {
		redirectError(w, r, "/login", "Masukkan nama pengguna yang valid")
		return
	}
	if _, err := s.sessions.SignIn(r.Context(), owner); err != nil {
		s.logger.ErrorContext(r.Context(), "sign in failed",
			log.FieldOwner, owner, log.FieldError, err.Error())
		redirectError(w, r, "/login", "Gagal memuat data, coba lagi")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ownerCookie,
		Value:    owner,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(ownerCookie); err == nil && cookie.Value != "" {
		s.sessions.SignOut(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ownerCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, store *session.Store) {
	now := time.Now()
	summary := store.Summary(now)
	percent, over := summary.BudgetUsedPercent()

	transactions := store.Transactions()
	recent := transactions
	if len(recent) > 5 {
		recent = recent[:5]
	}

	page := dashboardPage{
		basePage:      s.base(r, store, "dashboard"),
		Summary:       summary,
		BudgetPercent: percent,
		BudgetOver:    over,
		Accounts:      s.accountViews(store),
		Categories:    store.Categories(),
		Recent:        recent,
		Today:         now,
	}

	// Offer a cheaper alternative for the latest food expense that was not
	// classified as thrifty.
	if food, ok := store.FoodCategory(); ok {
		for i := range transactions {
			t := transactions[i]
			if t.Type != core.Expense || t.CategoryID != food.ID {
				continue
			}
			if t.SpendingAnalysis == core.Thrifty {
				break
			}
			if item, ok := core.SuggestAlternative(t.Amount, store.Profile().DietPreference); ok {
				page.Suggestion = &item
				page.SuggestionFor = &t
			}
			break
		}
	}

	s.render(w, r, "dashboard.html", page)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, store *session.Store) {
	s.render(w, r, "history.html", historyPage{
		basePage:     s.base(r, store, "history"),
		Transactions: store.Transactions(),
		Accounts:     store.Accounts(),
		Categories:   store.Categories(),
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request, store *session.Store) {
	s.render(w, r, "accounts.html", accountsPage{
		basePage: s.base(r, store, "accounts"),
		Accounts: s.accountViews(store),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, store *session.Store) {
	s.render(w, r, "categories.html", categoriesPage{
		basePage:   s.base(r, store, "categories"),
		Categories: store.Categories(),
	})
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request, store *session.Store) {
	budget := store.Budget()
	categories := store.Categories()
	rows := make([]budgetRow, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, budgetRow{Category: c, Amount: budget[c.ID]})
	}

	summary := store.Summary(time.Now())
	percent, over := summary.BudgetUsedPercent()
	s.render(w, r, "budget.html", budgetPage{
		basePage:      s.base(r, store, "budget"),
		Rows:          rows,
		FoodExpense:   summary.FoodExpense,
		FoodBudget:    summary.FoodBudget,
		BudgetPercent: percent,
		BudgetOver:    over,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, store *session.Store) {
	s.render(w, r, "profile.html", profilePage{
		basePage: s.base(r, store, "profile"),
		Profile:  store.Profile(),
		Diets: []core.DietPreference{
			core.DietNormal,
			core.DietVegetarian,
			core.DietLowSugar,
			core.DietPregnancy,
			core.DietBulking,
			core.DietKidGrowth,
		},
	})
}

func (s *Server) handleAdvicePage(w http.ResponseWriter, r *http.Request, store *session.Store) {
	s.render(w, r, "advice.html", advicePage{
		basePage: s.base(r, store, "advice"),
		Enabled:  s.advisor != nil,
	})
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request, store *session.Store) {
	page := advicePage{
		basePage: s.base(r, store, "advice"),
		Enabled:  s.advisor != nil,
	}
	if s.advisor == nil {
		page.Notice = "Fitur saran sedang tidak aktif"
		s.render(w, r, "advice.html", page)
		return
	}

	advice, err := s.advisor.Advise(r.Context(), advisor.Input{
		Owner:        store.Owner(),
		Transactions: store.Transactions(),
		Categories:   store.Categories(),
		Budget:       store.Budget(),
		Profile:      store.Profile(),
	})
	switch {
	case errors.Is(err, advisor.ErrNoFoodCategory):
		page.Notice = "Kategori Makanan tidak ditemukan"
	case errors.Is(err, advisor.ErrNoRecentFoodSpends):
		page.Notice = "Belum ada pengeluaran makanan dalam 30 hari terakhir"
	case err != nil:
		s.logger.ErrorContext(r.Context(), "advice request failed",
			log.FieldOwner, store.Owner(), log.FieldError, err.Error())
		page.Notice = "Gagal mendapatkan saran, coba lagi nanti"
	default:
		page.Advice = &advice
	}
	s.render(w, r, "advice.html", page)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, store *session.Store) {
	amount, err := parseAmount(r.FormValue("amount"))
	if err != nil {
		redirectError(w, r, "/", "Nominal tidak valid")
		return
	}
	date, err := parseDate(r.FormValue("date"))
	if err != nil {
		redirectError(w, r, "/", "Tanggal tidak valid")
		return
	}
	draft := core.TransactionDraft{
		AccountID:   sanitizeInput(r.FormValue("account_id")),
		CategoryID:  sanitizeInput(r.FormValue("category_id")),
		Amount:      amount,
		Type:        core.TransactionType(sanitizeInput(r.FormValue("type"))),
		Date:        date,
		Description: sanitizeInput(r.FormValue("description")),
	}
	if _, err := store.AddTransaction(r.Context(), draft); err != nil {
		redirectError(w, r, "/", mutationError(err))
		return
	}
	s.invalidateAdvice(store)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, store *session.Store) {
	amount, err := parseAmount(r.FormValue("amount"))
	if err != nil {
		redirectError(w, r, "/history", "Nominal tidak valid")
		return
	}
	date, err := parseDate(r.FormValue("date"))
	if err != nil {
		redirectError(w, r, "/history", "Tanggal tidak valid")
		return
	}
	draft := core.TransactionDraft{
		AccountID:   sanitizeInput(r.FormValue("account_id")),
		CategoryID:  sanitizeInput(r.FormValue("category_id")),
		Amount:      amount,
		Type:        core.TransactionType(sanitizeInput(r.FormValue("type"))),
		Date:        date,
		Description: sanitizeInput(r.FormValue("description")),
	}
	if err := store.UpdateTransaction(r.Context(), r.PathValue("id"), draft); err != nil {
		redirectError(w, r, "/history", mutationError(err))
		return
	}
	s.invalidateAdvice(store)
	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, store *session.Store) {
	if err := store.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		redirectError(w, r, "/history", mutationError(err))
		return
	}
	s.invalidateAdvice(store)
	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, store *session.Store) {
	if _, err := store.AddAccount(r.Context(), sanitizeInput(r.FormValue("name"))); err != nil {
		redirectError(w, r, "/accounts", mutationError(err))
		return
	}
	http.Redirect(w, r, "/accounts", http.StatusSeeOther)
}

func (s *Server) handleAdjustAccount(w http.ResponseWriter, r *http.Request, store *session.Store) {
	target, err := parseSignedAmount(r.FormValue("balance"))
	if err != nil {
		redirectError(w, r, "/accounts", "Saldo tidak valid")
		return
	}
	if _, err := store.AdjustAccountBalance(r.Context(), r.PathValue("id"), target); err != nil {
		redirectError(w, r, "/accounts", mutationError(err))
		return
	}
	http.Redirect(w, r, "/accounts", http.StatusSeeOther)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, store *session.Store) {
	if err := store.DeleteAccount(r.Context(), r.PathValue("id")); err != nil {
		redirectError(w, r, "/accounts", mutationError(err))
		return
	}
	http.Redirect(w, r, "/accounts", http.StatusSeeOther)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, store *session.Store) {
	name := sanitizeInput(r.FormValue("name"))
	color := sanitizeInput(r.FormValue("color"))
	if _, err := store.AddCategory(r.Context(), name, color); err != nil {
		redirectError(w, r, "/categories", mutationError(err))
		return
	}
	http.Redirect(w, r, "/categories", http.StatusSeeOther)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, store *session.Store) {
	name := sanitizeInput(r.FormValue("name"))
	color := sanitizeInput(r.FormValue("color"))
	if err := store.UpdateCategory(r.Context(), r.PathValue("id"), name, color); err != nil {
		redirectError(w, r, "/categories", mutationError(err))
		return
	}
	http.Redirect(w, r, "/categories", http.StatusSeeOther)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, store *session.Store) {
	if err := store.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		redirectError(w, r, "/categories", mutationError(err))
		return
	}
	http.Redirect(w, r, "/categories", http.StatusSeeOther)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request, store *session.Store) {
	amount, err := parseSignedAmount(r.FormValue("amount"))
	if err != nil {
		redirectError(w, r, "/budget", "Nominal tidak valid")
		return
	}
	if err := store.SetCategoryBudget(sanitizeInput(r.FormValue("category_id")), amount); err != nil {
		redirectError(w, r, "/budget", mutationError(err))
		return
	}
	http.Redirect(w, r, "/budget", http.StatusSeeOther)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, store *session.Store) {
	profile := core.HealthProfile{
		DietPreference: core.DietPreference(sanitizeInput(r.FormValue("diet"))),
	}
	if err := store.UpdateHealthProfile(profile); err != nil {
		redirectError(w, r, "/profile", mutationError(err))
		return
	}
	s.invalidateAdvice(store)
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (s *Server) accountViews(store *session.Store) []accountView {
	accounts := store.Accounts()
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{Account: a, Balance: store.Balance(a.ID)})
	}
	return views
}

func (s *Server) invalidateAdvice(store *session.Store) {
	if s.advisor != nil {
		s.advisor.Invalidate(store.Owner())
	}
}

// parseAmount reads a positive plain-integer IDR amount.
func parseAmount(v string) (int64, error) {
	amount, err := parseSignedAmount(v)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	return amount, nil
}

func parseSignedAmount(v string) (int64, error) {
	return strconv.ParseInt(sanitizeInput(v), 10, 64)
}

// parseDate accepts the HTML date input format; empty means today.
func parseDate(v string) (time.Time, error) {
	v = sanitizeInput(v)
	if v == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", v)
}

func redirectError(w http.ResponseWriter, r *http.Request, path, msg string) {
	http.Redirect(w, r, path+"?err="+url.QueryEscape(msg), http.StatusSeeOther)
}

// mutationError maps domain errors to user-facing messages.
func mutationError(err error) string {
	switch {
	case errors.Is(err, core.ErrDuplicateName):
		return "Nama sudah dipakai"
	case errors.Is(err, core.ErrAccountInUse):
		return "Akun masih memiliki transaksi"
	case errors.Is(err, core.ErrNotFound):
		return "Data tidak ditemukan"
	case errors.Is(err, core.ErrNegativeBudget):
		return "Anggaran tidak boleh negatif"
	case errors.Is(err, core.ErrInvalidAmount):
		return "Nominal tidak valid"
	case errors.Is(err, core.ErrInvalidDate):
		return "Tanggal tidak valid"
	case errors.Is(err, core.ErrInvalidType):
		return "Jenis transaksi tidak valid"
	case errors.Is(err, core.ErrInvalidDiet):
		return "Preferensi diet tidak valid"
	case errors.Is(err, core.ErrEmptyDescription):
		return "Deskripsi wajib diisi"
	case errors.Is(err, core.ErrEmptyName):
		return "Nama wajib diisi"
	case errors.Is(err, core.ErrMissingAccount):
		return "Pilih akun terlebih dahulu"
	case errors.Is(err, core.ErrMissingCategory):
		return "Pilih kategori terlebih dahulu"
	default:
		return "Terjadi kesalahan, coba lagi"
	}
}

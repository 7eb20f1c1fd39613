package demoapp

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/shaiso/Probe/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MB

// UserStore — неизменяемый набор пользователей users API.
type UserStore struct {
	mu    sync.RWMutex
	users []domain.User
}

// NewUserStore создаёт хранилище с копией users.
func NewUserStore(users []domain.User) *UserStore {
	cp := make([]domain.User, len(users))
	copy(cp, users)
	return &UserStore{users: cp}
}

// List возвращает пользователей, у которых совпадают все поля фильтра.
func (s *UserStore) List(filter map[string]string) []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if matchUser(u, filter) {
			out = append(out, u)
		}
	}
	return out
}

// Get возвращает пользователя по id.
func (s *UserStore) Get(id int) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return domain.User{}, false
}

// NextID возвращает id, который получил бы новый пользователь.
func (s *UserStore) NextID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := 1
	for _, u := range s.users {
		if u.ID >= next {
			next = u.ID + 1
		}
	}
	return next
}

func matchUser(u domain.User, filter map[string]string) bool {
	for key, want := range filter {
		var got string
		switch key {
		case "id":
			got = strconv.Itoa(u.ID)
		case "name":
			got = u.Name
		case "username":
			got = u.Username
		case "email":
			got = u.Email
		default:
			continue
		}
		if !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}

// ListUsers возвращает список пользователей.
// GET /users?username=...&email=...
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			filter[key] = values[0]
		}
	}

	JSON(w, http.StatusOK, h.users.List(filter))
}

// GetUser возвращает пользователя по id.
// GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupUser(r)
	if !ok {
		NotFound(w)
		return
	}
	JSON(w, http.StatusOK, user)
}

// CreateUser имитирует создание пользователя: возвращает тело запроса с новым id.
// POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeObject(w, r)
	if !ok {
		return
	}

	payload["id"] = h.users.NextID()
	JSON(w, http.StatusCreated, payload)
}

// UpdateUser имитирует обновление: возвращает тело запроса с id пользователя.
// PUT /users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupUser(r)
	if !ok {
		NotFound(w)
		return
	}

	payload, ok := decodeObject(w, r)
	if !ok {
		return
	}

	payload["id"] = user.ID
	JSON(w, http.StatusOK, payload)
}

// DeleteUser имитирует удаление.
// DELETE /users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.lookupUser(r); !ok {
		NotFound(w)
		return
	}
	JSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) lookupUser(r *http.Request) (domain.User, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return domain.User{}, false
	}
	return h.users.Get(id)
}

// decodeObject читает JSON объект из тела запроса.
// При ошибке отправляет 400 и возвращает false.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		BadRequest(w, "failed to read body")
		return nil, false
	}

	payload := make(map[string]any)
	if len(strings.TrimSpace(string(raw))) == 0 {
		return payload, true
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return nil, false
	}
	return payload, true
}

// SeedUsers возвращает 10 пользователей в формате jsonplaceholder.
func SeedUsers() []domain.User {
	type seed struct {
		name, username, email, city, company string
	}
	seeds := []seed{
		{"Leanne Graham", "Bret", "Sincere@april.biz", "Gwenborough", "Romaguera-Crona"},
		{"Ervin Howell", "Antonette", "Shanna@melissa.tv", "Wisokyburgh", "Deckow-Crist"},
		{"Clementine Bauch", "Samantha", "Nathan@yesenia.net", "McKenziehaven", "Romaguera-Jacobson"},
		{"Patricia Lebsack", "Karianne", "Julianne.OConner@kory.org", "South Elvis", "Robel-Corkery"},
		{"Chelsey Dietrich", "Kamren", "Lucio_Hettinger@annie.ca", "Roscoeview", "Keebler LLC"},
		{"Mrs. Dennis Schulist", "Leopoldo_Corkery", "Karley_Dach@jasper.info", "South Christy", "Considine-Lockman"},
		{"Kurtis Weissnat", "Elwyn.Skiles", "Telly.Hoeger@billy.biz", "Howemouth", "Johns Group"},
		{"Nicholas Runolfsdottir V", "Maxime_Nienow", "Sherwood@rosamond.me", "Aliyaview", "Abernathy Group"},
		{"Glenna Reichert", "Delphine", "Chaim_McDermott@dana.io", "Bartholomebury", "Yost and Sons"},
		{"Clementina DuBuque", "Moriah.Stanton", "Rey.Padberg@karina.biz", "Lebsackbury", "Hoeger LLC"},
	}

	users := make([]domain.User, len(seeds))
	for i, s := range seeds {
		users[i] = domain.User{
			ID:       i + 1,
			Name:     s.name,
			Username: s.username,
			Email:    s.email,
			Address: &domain.Address{
				City: s.city,
				Geo:  domain.Geo{Lat: "0", Lng: "0"},
			},
			Phone:   "1-770-736-80" + strconv.Itoa(10+i),
			Website: strings.ToLower(strings.ReplaceAll(s.username, "_", "")) + ".org",
			Company: &domain.Company{Name: s.company},
		}
	}
	return users
}

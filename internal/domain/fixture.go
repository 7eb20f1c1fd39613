package domain

// User — пользователь users API (формат jsonplaceholder).
type User struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Address  *Address `json:"address,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Website  string   `json:"website,omitempty"`
	Company  *Company `json:"company,omitempty"`
}

// Address — адрес пользователя.
type Address struct {
	Street  string `json:"street"`
	Suite   string `json:"suite"`
	City    string `json:"city"`
	Zipcode string `json:"zipcode"`
	Geo     Geo    `json:"geo"`
}

// Geo — координаты адреса.
type Geo struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// Company — компания пользователя.
type Company struct {
	Name        string `json:"name"`
	CatchPhrase string `json:"catchPhrase"`
	BS          string `json:"bs"`
}

// LoginCredentials — пара логин/пароль из фикстуры.
type LoginCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// FormRule — правило проверки поля формы для команды validateForm.
type FormRule struct {
	Required    bool   `json:"required,omitempty"`
	Type        string `json:"type,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	MinLength   int    `json:"minLength,omitempty"`
	MaxLength   int    `json:"maxLength,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
}

// Viewport — размер окна браузера.
type Viewport struct {
	Width  int `json:"width" yaml:"width" env:"WIDTH" validate:"min=1"`
	Height int `json:"height" yaml:"height" env:"HEIGHT" validate:"min=1"`
}

// Стандартные размеры окна.
var (
	ViewportMobile  = Viewport{Width: 375, Height: 812} // iphone-x
	ViewportDesktop = Viewport{Width: 1920, Height: 1080}
	ViewportDefault = Viewport{Width: 1280, Height: 720}
)

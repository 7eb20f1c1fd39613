package demoapp

import "html/template"

type loginView struct {
	Error    string
	Username string
}

type dashboardView struct {
	Username string
	Users    int
}

// Разметка следует соглашениям browser.HTTPDriver: data-validation-for
// для сообщений о пустых обязательных полях и data-toggle-password для
// кнопки показа пароля.
var loginTemplate = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Login | Probe Demo</title>
</head>
<body>
  <main>
    <h1>Sign in</h1>
    <form method="post" action="/login" data-cy="login-form" data-testid="login-form">
      <label for="email">Username</label>
      <input id="email" name="username" type="text" placeholder="Username" required
             value="{{.Username}}" data-cy="username" data-testid="email-input">
      <div class="validation-error" data-cy="username-error" data-testid="validation-error"
           data-validation-for="username" hidden>Username is required</div>

      <label for="password">Password</label>
      <input id="password" name="password" type="password" placeholder="Password" required
             minlength="4" data-password data-cy="password" data-testid="password-input">
      <button type="button" id="password-toggle" class="password-toggle" aria-label="Show password"
              data-testid="password-toggle" data-toggle-password="#password">Show</button>
      <div class="validation-error" data-cy="password-error" data-testid="validation-error"
           data-validation-for="password" hidden>Password is required</div>

      <input id="remember" name="remember" type="checkbox" value="1" data-testid="remember-me">
      <label for="remember">Remember me</label>

      <button type="submit" id="login-btn" data-cy="login-button" data-testid="login-button">Log in</button>
      {{if .Error}}<div class="error-message" role="alert" data-cy="error-message" data-testid="error-message">{{.Error}}</div>{{end}}
    </form>
  </main>
</body>
</html>
`))

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Dashboard | Probe Demo</title>
</head>
<body>
  <header>
    <h1 class="welcome-message" data-cy="welcome-message" data-testid="welcome-message">Welcome, {{.Username}}!</h1>
    <div data-cy="success-message" role="status">Login successful</div>
  </header>
  <main>
    <section id="profile" class="user-profile" data-testid="user-profile">
      <h2>Profile</h2>
      <p data-cy="profile-username">{{.Username}}</p>
    </section>
    <section data-cy="stats">
      <p>Users in directory: <span data-cy="user-count">{{.Users}}</span></p>
    </section>
    <form method="post" action="/logout">
      <button type="submit" data-cy="logout-button">Log out</button>
    </form>
  </main>
</body>
</html>
`))

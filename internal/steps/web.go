package steps

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/shaiso/Probe/internal/browser"
	"github.com/shaiso/Probe/internal/commands"
	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/execution"
	"github.com/shaiso/Probe/internal/expect"
	"github.com/shaiso/Probe/internal/pattern"
)

// Селекторы страницы логина. Группы перечисляют запасные варианты
// разметки: data-testid, тип поля, id.
const (
	emailFieldSelector    = `[data-testid="email-input"], input[type="email"], #email`
	passwordFieldSelector = `[data-testid="password-input"], input[type="password"], #password`
	loginButtonSelector   = `[data-testid="login-button"], button[type="submit"], #login-btn`
	passwordToggle        = `[data-testid="password-toggle"], .password-toggle, #password-toggle`
	welcomeSelector       = `[data-testid="welcome-message"], .welcome-message, h1`
	profileSelector       = `[data-testid="user-profile"], .user-profile, #profile`
	errorSelector         = `[data-testid="error-message"], .error-message, .alert-danger`
	validationSelector    = `[data-testid="validation-error"], .validation-error, .error`
	rememberMeSelector    = `[data-testid="remember-me"], input[name="remember"]`

	dashboardPath = "/dashboard"
)

var whitespace = regexp.MustCompile(`\s+`)

// webSteps — шаги страницы логина и dashboard.
type webSteps struct {
	cmds *commands.Registry
}

// RegisterWebSteps регистрирует шаги браузера.
func RegisterWebSteps(l *Library, cmds *commands.Registry) {
	s := &webSteps{cmds: cmds}

	l.Given(`I am on the login page`, s.onLoginPage)
	l.Given(`I visit {string}`, s.visit)
	l.Given(`I open an inline page with heading {string}`, s.inlinePage)

	l.When(`I enter {string} in the email field`, s.typeInto(emailFieldSelector))
	l.When(`I enter {string} in the password field`, s.typeInto(passwordFieldSelector))
	l.When(`I click the login button`, s.click(loginButtonSelector))
	l.When(`I leave the email field empty`, s.clear(emailFieldSelector))
	l.When(`I leave the password field empty`, s.clear(passwordFieldSelector))
	l.When(`I click the password visibility toggle`, s.click(passwordToggle))
	l.When(`I check the {string} checkbox`, s.checkBox)
	l.When(`I click {string}`, s.clickSelector)
	l.When(`I type {string} into {string}`, s.typeIntoSelector)

	l.Then(`I should see text {string}`, s.shouldSeeText)
	l.Then(`I should be redirected to the dashboard`, s.urlShouldInclude(dashboardPath))
	l.Then(`I should see a welcome message`, s.shouldBeVisible(welcomeSelector))
	l.Then(`I should see my user profile information`, s.shouldBeVisible(profileSelector))
	l.Then(`I should see an error message`, s.shouldBeVisible(errorSelector))
	l.Then(`I should remain on the login page`, s.urlShouldInclude(commands.LoginPath))
	l.Then(`I should see validation error messages`, s.shouldBeVisible(validationSelector))
	l.Then(`the form should not be submitted`, s.urlShouldInclude(commands.LoginPath))
	l.Then(`the password should be hidden by default`, s.passwordType("password"))
	l.Then(`the password should be visible`, s.passwordType("text"))
	l.Then(`the password should be hidden again`, s.passwordType("password"))
	l.Then(`my login credentials should be remembered for next time`, s.rememberMeChecked)
	l.Then(`the URL should include {string}`, s.urlIncludes)
	l.Then(`the page title should contain {string}`, s.titleContains)
	l.Then(`the element {string} should be visible`, s.elementVisible)
	l.Then(`the element {string} should contain {string}`, s.elementContains)

	// Шаги поверх команд
	l.When(`I log in as {string} with password {string}`, s.loginAs)
	l.When(`I log in with valid credentials`, s.loginWithFixture(true))
	l.When(`I log in with invalid credentials`, s.loginWithFixture(false))
	l.Then(`the page should be fully loaded`, s.invoke(commands.WaitForPageLoad))
	l.Then(`the page should be accessible`, s.invoke(commands.CheckAccessibility))
	l.When(`I switch to the mobile view`, s.invoke(commands.TestMobileView))
	l.When(`I switch to the desktop view`, s.invoke(commands.TestDesktopView))
	l.Then(`the viewport should be {int} by {int}`, s.viewportIs)
	l.Then(`the element {string} should be visible and clickable`, s.visibleAndClickable)
	l.Then(`the form {string} should have the following fields:`, s.formFields)
}

func (s *webSteps) onLoginPage(ctx context.Context, ec *execution.Context) error {
	return s.visit(ctx, ec, commands.LoginPath)
}

func (s *webSteps) visit(ctx context.Context, ec *execution.Context, url string) error {
	_, err := s.cmds.Invoke(ctx, ec, commands.Visit, url)
	return err
}

func (s *webSteps) inlinePage(_ context.Context, ec *execution.Context, heading string) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	page := `<!doctype html><html><head><meta charset="utf-8"><title>Inline</title></head><body><h1>` +
		html.EscapeString(heading) + `</h1></body></html>`
	return b.SetContent(page)
}

func (s *webSteps) typeInto(selector string) func(context.Context, *execution.Context, string) error {
	return func(ctx context.Context, ec *execution.Context, text string) error {
		return s.typeIntoSelector(ctx, ec, text, selector)
	}
}

func (s *webSteps) typeIntoSelector(ctx context.Context, ec *execution.Context, text, selector string) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	return b.Type(ctx, selector, text)
}

func (s *webSteps) click(selector string) func(context.Context, *execution.Context) error {
	return func(ctx context.Context, ec *execution.Context) error {
		return s.clickSelector(ctx, ec, selector)
	}
}

func (s *webSteps) clickSelector(ctx context.Context, ec *execution.Context, selector string) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	return b.Click(ctx, selector)
}

func (s *webSteps) clear(selector string) func(context.Context, *execution.Context) error {
	return func(ctx context.Context, ec *execution.Context) error {
		b, err := ec.Browser()
		if err != nil {
			return err
		}
		return b.Clear(ctx, selector)
	}
}

// checkBox отмечает checkbox по подписи: "Remember me" -> [data-testid="remember-me"].
func (s *webSteps) checkBox(ctx context.Context, ec *execution.Context, label string) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	testID := whitespace.ReplaceAllString(strings.ToLower(label), "-")
	return b.Check(ctx, fmt.Sprintf(`[data-testid=%q], input[type="checkbox"]`, testID))
}

func (s *webSteps) shouldSeeText(ctx context.Context, ec *execution.Context, text string) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	return expect.Eventually(ctx, ec.CommandTimeout(), func() error {
		return expect.True(b.Contains(text), "expected to find visible text %q", text)
	})
}

func (s *webSteps) urlShouldInclude(fragment string) func(context.Context, *execution.Context) error {
	return func(ctx context.Context, ec *execution.Context) error {
		return s.urlIncludes(ctx, ec, fragment)
	}
}

func (s *webSteps) urlIncludes(ctx context.Context, ec *execution.Context, fragment string) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	return expect.Eventually(ctx, ec.CommandTimeout(), func() error {
		return expect.Contains("url", b.URL(), fragment)
	})
}

func (s *webSteps) titleContains(ctx context.Context, ec *execution.Context, text string) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	return expect.Eventually(ctx, ec.CommandTimeout(), func() error {
		return expect.Contains("title", b.Title(), text)
	})
}

func (s *webSteps) shouldBeVisible(selector string) func(context.Context, *execution.Context) error {
	return func(ctx context.Context, ec *execution.Context) error {
		return s.elementVisible(ctx, ec, selector)
	}
}

func (s *webSteps) elementVisible(ctx context.Context, ec *execution.Context, selector string) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	return expect.Eventually(ctx, ec.CommandTimeout(), func() error {
		_, err := commands.VisibleElement(b, selector)
		return err
	})
}

func (s *webSteps) elementContains(ctx context.Context, ec *execution.Context, selector, text string) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	return expect.Eventually(ctx, ec.CommandTimeout(), func() error {
		el, err := commands.VisibleElement(b, selector)
		if err != nil {
			return err
		}
		return expect.Contains(el.Describe(), el.Text, text)
	})
}

func (s *webSteps) passwordType(want string) func(context.Context, *execution.Context) error {
	return func(ctx context.Context, ec *execution.Context) error {
		return s.firstElement(ctx, ec, passwordFieldSelector, func(el *browser.Element) error {
			got, _ := el.Attr("type")
			return expect.Equal("password field type", want, got)
		})
	}
}

func (s *webSteps) rememberMeChecked(ctx context.Context, ec *execution.Context) error {
	return s.firstElement(ctx, ec, rememberMeSelector, func(el *browser.Element) error {
		return expect.True(el.Checked, "expected %s to be checked", el.Describe())
	})
}

// firstElement ждёт, пока первый элемент по селектору удовлетворит check.
func (s *webSteps) firstElement(ctx context.Context, ec *execution.Context, selector string, check func(*browser.Element) error) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	return expect.Eventually(ctx, ec.CommandTimeout(), func() error {
		els, err := b.QueryAll(selector)
		if err != nil {
			return err
		}
		if len(els) == 0 {
			return expect.Failf("expected to find element %s, but never found it", selector)
		}
		return check(els[0])
	})
}

func (s *webSteps) loginAs(ctx context.Context, ec *execution.Context, username, password string) error {
	_, err := s.cmds.Invoke(ctx, ec, commands.Login, username, password)
	return err
}

func (s *webSteps) loginWithFixture(valid bool) func(context.Context, *execution.Context) error {
	return func(ctx context.Context, ec *execution.Context) error {
		creds := ec.Fixtures().Credentials(valid)
		if creds.Username == "" {
			return fmt.Errorf("%w: loginCredentials in fixtures", commands.ErrInvalidArgs)
		}
		return s.loginAs(ctx, ec, creds.Username, creds.Password)
	}
}

func (s *webSteps) invoke(name string) func(context.Context, *execution.Context) error {
	return func(ctx context.Context, ec *execution.Context) error {
		_, err := s.cmds.Invoke(ctx, ec, name)
		return err
	}
}

func (s *webSteps) viewportIs(_ context.Context, ec *execution.Context, width, height int) error {
	b, err := ec.Browser()
	if err != nil {
		return err
	}
	return expect.Equal("viewport", domain.Viewport{Width: width, Height: height}, b.Viewport())
}

func (s *webSteps) visibleAndClickable(ctx context.Context, ec *execution.Context, selector string) error {
	_, err := s.cmds.Invoke(ctx, ec, commands.ShouldBeVisibleAndClickable, selector)
	return err
}

// formFields проверяет атрибуты полей формы.
//
//	| field    | required | type     | placeholder |
//	| username | true     | text     | Username    |
func (s *webSteps) formFields(ctx context.Context, ec *execution.Context, form string, table *pattern.DataTable) error {
	rows := table.Hashes()
	if len(rows) == 0 {
		return fmt.Errorf("%w: table has no data rows", pattern.ErrInvalidTable)
	}

	rules := make(map[string]domain.FormRule, len(rows))
	for _, row := range rows {
		field := row["field"]
		if field == "" {
			return fmt.Errorf("%w: column \"field\" is required", pattern.ErrInvalidTable)
		}

		rule := domain.FormRule{
			Required:    row["required"] == "true",
			Type:        row["type"],
			Placeholder: row["placeholder"],
			Pattern:     row["pattern"],
		}
		for key, dst := range map[string]*int{"minLength": &rule.MinLength, "maxLength": &rule.MaxLength} {
			if v := row[key]; v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("%w: %s %q is not a number", pattern.ErrInvalidTable, key, v)
				}
				*dst = n
			}
		}
		rules[field] = rule
	}

	_, err := s.cmds.Invoke(ctx, ec, commands.ValidateForm, form, rules)
	return err
}

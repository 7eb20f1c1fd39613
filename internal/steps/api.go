package steps

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/shaiso/Probe/internal/apiclient"
	"github.com/shaiso/Probe/internal/commands"
	"github.com/shaiso/Probe/internal/execution"
	"github.com/shaiso/Probe/internal/expect"
	"github.com/shaiso/Probe/internal/pattern"
)

// apiSteps — шаги users API. Запросы выполняются командой apiRequest.
type apiSteps struct {
	cmds *commands.Registry
}

// RegisterAPISteps регистрирует шаги API.
func RegisterAPISteps(l *Library, cmds *commands.Registry) {
	s := &apiSteps{cmds: cmds}

	l.Given(`the API base URL is {string}`, s.setBaseURL)

	l.When(`I send a GET request to {string}`, s.get)
	l.When(`I send a GET request to {string} with headers:`, s.getWithHeaders)
	l.When(`I send a POST request to {string} with the following data:`, s.sendWithData(http.MethodPost))
	l.When(`I send a PUT request to {string} with the following data:`, s.sendWithData(http.MethodPut))
	l.When(`I send a DELETE request to {string}`, s.delete)

	l.Then(`the response status should be {int}`, s.statusShouldBe)
	l.Then(`the response should contain an array of users`, s.shouldContainArray)
	l.Then(`the response should contain {int} users`, s.shouldContainUsers)
	l.Then(`the response should contain a user object`, s.shouldContainObjectWithID)
	l.Then(`each user should have an {string} field`, s.eachShouldHaveField)
	l.Then(`each user should have a {string} field`, s.eachShouldHaveField)
	l.Then(`the user should have an {string} field with value {string}`, s.fieldShouldEqual)
	l.Then(`the user should have a {string} field with value {string}`, s.fieldShouldEqual)
	l.Then(`the user should have a {string} field`, s.shouldHaveField)
	l.Then(`the user should have an {string} field`, s.shouldHaveField)
	l.Then(`the response should have an {string} field`, s.shouldHaveField)
	l.Then(`the response should have a {string} field`, s.shouldHaveField)
	l.Then(`the response should contain the created user data`, s.shouldContainObjectWithID)
	l.Then(`the response should contain the updated user data`, s.shouldContainUpdated)
	l.Then(`the user name should be {string}`, s.valueShouldBe("name"))
	l.Then(`the user email should be {string}`, s.valueShouldBe("email"))
	l.Then(`the response header {string} should contain {string}`, s.headerShouldContain)

	// Шаги поверх команд
	l.Then(`the response time should be below {int} ms`, s.responseTimeBelow)
	l.Then(`the response should include the fields {string}`, s.includeFields)
	l.Then(`the response should be successful`, s.successful)
}

func (s *apiSteps) setBaseURL(_ context.Context, ec *execution.Context, url string) error {
	ec.SetAPIBaseURL(url)
	return nil
}

func (s *apiSteps) request(ctx context.Context, ec *execution.Context, method, endpoint string, opts commands.RequestOptions) error {
	_, err := s.cmds.Invoke(ctx, ec, commands.APIRequest, method, endpoint, opts)
	return err
}

func (s *apiSteps) get(ctx context.Context, ec *execution.Context, endpoint string) error {
	return s.request(ctx, ec, http.MethodGet, endpoint, commands.RequestOptions{})
}

func (s *apiSteps) getWithHeaders(ctx context.Context, ec *execution.Context, endpoint string, table *pattern.DataTable) error {
	headers, err := table.RowsHash()
	if err != nil {
		return err
	}
	return s.request(ctx, ec, http.MethodGet, endpoint, commands.RequestOptions{Headers: headers})
}

// sendWithData отправляет первую строку таблицы как JSON тело.
func (s *apiSteps) sendWithData(method string) func(context.Context, *execution.Context, string, *pattern.DataTable) error {
	return func(ctx context.Context, ec *execution.Context, endpoint string, table *pattern.DataTable) error {
		data, err := table.FirstHash()
		if err != nil {
			return err
		}
		return s.request(ctx, ec, method, endpoint, commands.RequestOptions{Body: data})
	}
}

func (s *apiSteps) delete(ctx context.Context, ec *execution.Context, endpoint string) error {
	return s.request(ctx, ec, http.MethodDelete, endpoint, commands.RequestOptions{})
}

func (s *apiSteps) statusShouldBe(_ context.Context, ec *execution.Context, status int) error {
	resp, err := ec.Response()
	if err != nil {
		return err
	}
	return expect.Equal("response status", status, resp.Status)
}

func (s *apiSteps) shouldContainArray(_ context.Context, ec *execution.Context) error {
	body, err := jsonBody(ec)
	if err != nil {
		return err
	}
	if !body.IsArray() {
		return expect.Mismatch("response body", "an array", describe(body))
	}
	return expect.True(len(body.Array()) > 0, "expected response array to be non-empty")
}

func (s *apiSteps) shouldContainUsers(_ context.Context, ec *execution.Context, n int) error {
	body, err := jsonBody(ec)
	if err != nil {
		return err
	}
	if !body.IsArray() {
		return expect.Mismatch("response body", "an array", describe(body))
	}
	return expect.Equal("response array length", n, len(body.Array()))
}

func (s *apiSteps) shouldContainObjectWithID(ctx context.Context, ec *execution.Context) error {
	return s.objectWithField(ec, "id")
}

func (s *apiSteps) shouldContainUpdated(_ context.Context, ec *execution.Context) error {
	return s.objectWithField(ec, "name")
}

func (s *apiSteps) objectWithField(ec *execution.Context, field string) error {
	body, err := jsonBody(ec)
	if err != nil {
		return err
	}
	if !body.IsObject() {
		return expect.Mismatch("response body", "an object", describe(body))
	}
	return hasProperty(body, field)
}

func (s *apiSteps) eachShouldHaveField(_ context.Context, ec *execution.Context, field string) error {
	body, err := jsonBody(ec)
	if err != nil {
		return err
	}
	if !body.IsArray() {
		return expect.Mismatch("response body", "an array", describe(body))
	}
	for i, item := range body.Array() {
		if err := hasProperty(item, field); err != nil {
			return fmt.Errorf("user #%d: %w", i, err)
		}
	}
	return nil
}

func (s *apiSteps) shouldHaveField(_ context.Context, ec *execution.Context, field string) error {
	body, err := jsonBody(ec)
	if err != nil {
		return err
	}
	return hasProperty(body, field)
}

// fieldShouldEqual сравнивает строковые представления значений.
func (s *apiSteps) fieldShouldEqual(_ context.Context, ec *execution.Context, field, value string) error {
	body, err := jsonBody(ec)
	if err != nil {
		return err
	}
	return expect.Equal(fmt.Sprintf("field %q", field), value, body.Get(gjsonKey(field)).String())
}

func (s *apiSteps) valueShouldBe(field string) func(context.Context, *execution.Context, string) error {
	return func(_ context.Context, ec *execution.Context, want string) error {
		body, err := jsonBody(ec)
		if err != nil {
			return err
		}
		got := body.Get(field)
		if !got.Exists() {
			return expect.Mismatch(fmt.Sprintf("user %s", field), want, nil)
		}
		return expect.Equal(fmt.Sprintf("user %s", field), want, got.String())
	}
}

func (s *apiSteps) headerShouldContain(_ context.Context, ec *execution.Context, name, value string) error {
	resp, err := ec.Response()
	if err != nil {
		return err
	}
	return expect.Contains(fmt.Sprintf("header %s", name), resp.Header(name), value)
}

func (s *apiSteps) responseTimeBelow(ctx context.Context, ec *execution.Context, ms int) error {
	_, err := s.cmds.Invoke(ctx, ec, commands.ValidateResponseTime, ms)
	return err
}

func (s *apiSteps) includeFields(ctx context.Context, ec *execution.Context, list string) error {
	var fields []string
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	_, err := s.cmds.Invoke(ctx, ec, commands.ValidateAPIResponse, nil, fields)
	return err
}

func (s *apiSteps) successful(ctx context.Context, ec *execution.Context) error {
	_, err := s.cmds.Invoke(ctx, ec, commands.ValidateAPIResponse, nil, []string{})
	return err
}

// jsonBody возвращает тело последнего ответа.
func jsonBody(ec *execution.Context) (gjson.Result, error) {
	resp, err := ec.Response()
	if err != nil {
		return gjson.Result{}, err
	}
	if !resp.IsJSON() {
		return gjson.Result{}, expect.Mismatch("response body", "JSON", bodyPreview(resp))
	}
	return resp.Root(), nil
}

// hasProperty проверяет наличие ключа верхнего уровня.
func hasProperty(v gjson.Result, field string) error {
	if v.IsObject() && v.Get(gjsonKey(field)).Exists() {
		return nil
	}
	return expect.Mismatch(fmt.Sprintf("property %q", field), "to exist", describe(v))
}

// gjsonKey экранирует спецсимволы gjson, чтобы имя поля читалось как ключ.
func gjsonKey(field string) string {
	var b strings.Builder
	for _, r := range field {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func describe(v gjson.Result) string {
	const limit = 200
	raw := v.Raw
	if len(raw) > limit {
		raw = raw[:limit] + "..."
	}
	if raw == "" {
		return "<empty>"
	}
	return raw
}

func bodyPreview(resp *apiclient.Response) string {
	const limit = 200
	s := string(resp.Raw)
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

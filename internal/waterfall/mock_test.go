package waterfall

import "context"

type fakeWebsite struct {
	url   string
	err   error
	calls int
	panic bool
}

func (f *fakeWebsite) FindWebsite(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.panic {
		panic("search exploded")
	}
	return f.url, f.err
}

type fakeSocial struct {
	socials map[string]string
	err     error
}

func (f *fakeSocial) FindSocials(_ context.Context, _, _ string) (map[string]string, error) {
	return f.socials, f.err
}

type fakeEmail struct {
	email   *Email
	err     error
	domains []string
}

func (f *fakeEmail) FindEmail(_ context.Context, domain string) (*Email, error) {
	f.domains = append(f.domains, domain)
	return f.email, f.err
}

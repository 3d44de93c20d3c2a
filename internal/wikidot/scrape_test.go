package wikidot

import "testing"

func TestScrapeLoginMismatch(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{
			name: "mismatch heading present",
			body: `<div><h2 class="error">The login and password do not match.</h2></div>`,
			want: true,
		},
		{
			name: "mismatch split across children",
			body: `<h2 class="error"><span>The login and password</span> do not match.</h2>`,
			want: true,
		},
		{
			name: "unrelated error heading",
			body: `<h2 class="error">Something else went wrong.</h2>`,
			want: false,
		},
		{
			name: "marker outside an error heading",
			body: `<p>The login and password do not match.</p>`,
			want: false,
		},
		{
			name: "successful login body",
			body: `<div id="welcome">Hello!</div>`,
			want: false,
		},
		{
			name: "empty body",
			body: "",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scrapeLoginMismatch(tt.body); got != tt.want {
				t.Errorf("scrapeLoginMismatch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScrapePageID(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID int64
		wantOK bool
	}{
		{
			name:   "bootstrap script",
			body:   `<script>WIKIREQUEST.info.pageId = 123456789;</script>`,
			wantID: 123456789,
			wantOK: true,
		},
		{
			name:   "no whitespace",
			body:   `WIKIREQUEST.info.pageId=42;`,
			wantID: 42,
			wantOK: true,
		},
		{
			name:   "missing",
			body:   `<script>var somethingElse = 1;</script>`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := scrapePageID(tt.body)
			if ok != tt.wantOK {
				t.Fatalf("scrapePageID() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && id != tt.wantID {
				t.Errorf("scrapePageID() = %d, want %d", id, tt.wantID)
			}
		})
	}
}

func TestScrapeTagInput(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     string
	}{
		{
			name:     "tags present",
			fragment: `<form><input id="page-tags-input" value="scp 无原文"/></form>`,
			want:     "scp 无原文",
		},
		{
			name:     "empty value",
			fragment: `<input id="page-tags-input" value=""/>`,
			want:     "",
		},
		{
			name:     "input missing",
			fragment: `<div>no input here</div>`,
			want:     "",
		},
		{
			name:     "other inputs ignored",
			fragment: `<input id="other" value="nope"/><input id="page-tags-input" value="tag1"/>`,
			want:     "tag1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scrapeTagInput(tt.fragment); got != tt.want {
				t.Errorf("scrapeTagInput() = %q, want %q", got, tt.want)
			}
		})
	}
}

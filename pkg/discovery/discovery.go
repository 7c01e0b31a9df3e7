// Package discovery finds the hubs a topic advertises, following
// https://www.w3.org/TR/websub/#discovery.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/peterhellberg/link"
	"golang.org/x/net/html"
)

var (
	// ErrNotParseable is returned when the topic's response has no links and is not html.
	ErrNotParseable = errors.New("discovery: response from URL provided was not parseable")

	// ErrMalformedHTML is returned when the html body cannot be tokenized.
	ErrMalformedHTML = errors.New("discovery: received malformed html from target")

	// ErrNoSelf is returned when the topic does not name its canonical (self) URL.
	ErrNoSelf = errors.New("discovery: target did not provide a self reference")
)

// DiscoverTopic is a request to a given topic url.
//
// Recipient: typically a publisher, but hubs implement it too.
// Response: a list of hubs who forward the content associated with this topic, and the topic's self URL.
func DiscoverTopic(ctx context.Context, client *http.Client, topic string) (map[string]struct{}, string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	// Form the request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, topic, nil)
	if err != nil {
		return make(map[string]struct{}), "", err
	}

	// Make the request
	resp, err := client.Do(req)
	if err != nil {
		return make(map[string]struct{}), "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return make(map[string]struct{}), "", fmt.Errorf("discovery: unexpected status code %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")

	// If header contains links, try to get them there.
	if _, ok := resp.Header["Link"]; ok {
		hubs, self := parseFromHeader(resp.Header)
		if self != "" {
			return hubs, self, nil
		}
	}

	// If the goods weren't in the header, go deeper
	if strings.Contains(contentType, "text/html") {
		return parseLinksFromHTML(resp.Body)
	}

	return make(map[string]struct{}), "", ErrNotParseable
}

// Parse links from the header of an http reply
// Will return an empty map and an empty string if no link headers exist
func parseFromHeader(header http.Header) (map[string]struct{}, string) {
	hubURLs := make(map[string]struct{})
	selfURL := ""
	group := link.ParseHeader(header)

	for _, l := range group {
		switch l.Rel {
		case "self":
			selfURL = l.URI
		case "hub":
			hubURLs[l.URI] = struct{}{}
		}
	}

	return hubURLs, selfURL
}

// linkTarget reports the rel (hub or self) and href of a <link> tag, if it is one of ours.
func linkTarget(t html.Token) (rel, href string) {
	for _, a := range t.Attr {
		switch a.Key {
		case "rel":
			rel = a.Val
		case "href":
			href = a.Val
		}
	}
	if (rel != "hub" && rel != "self") || href == "" {
		return "", ""
	}
	return rel, href
}

// Parse links from the head of an html body.
func parseLinksFromHTML(htmlReader io.Reader) (map[string]struct{}, string, error) {
	tokenizer := html.NewTokenizer(htmlReader)

	hubURLs := make(map[string]struct{})
	selfURL := ""
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		// We're looking for links embedded in heads
		case html.StartTagToken, html.SelfClosingTagToken:
			t := tokenizer.Token()
			if t.Data == "head" {
				inHead = true
				continue
			}
			if t.Data != "link" || !inHead {
				continue
			}
			switch rel, href := linkTarget(t); rel {
			case "hub":
				hubURLs[href] = struct{}{}
			case "self":
				selfURL = href
			}
		// Stop parsing once we exit the head
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" || string(tn) == "html" {
				return finish(hubURLs, selfURL)
			}
		// Obviously, stop parsing if we hit an error token
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				return finish(hubURLs, selfURL)
			}
			return make(map[string]struct{}), "", ErrMalformedHTML
		}
	}
}

func finish(hubURLs map[string]struct{}, selfURL string) (map[string]struct{}, string, error) {
	if selfURL == "" {
		return make(map[string]struct{}), "", ErrNoSelf
	}
	return hubURLs, selfURL, nil
}

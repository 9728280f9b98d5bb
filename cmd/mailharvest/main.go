// Package main provides the entry point for the mailharvest CLI.
//
// mailharvest crawls a website, staying inside the seed's domain, and
// prints the contact email addresses it finds, one per line.
//
// Usage:
//
//	mailharvest crawl <domain-or-url>
//	mailharvest crawl --json example.com example.org
//
// See --help for all available options.
package main

// main is the entry point for mailharvest.
func main() {
	Execute()
}

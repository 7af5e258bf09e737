// Package main provides the wordcrawl CLI entrypoint.
//
// wordcrawl crawls a website breadth-first from a seed URL and counts how
// many times a word appears in the visible text of the pages it reaches.
//
// Usage:
//
//	wordcrawl -u https://www.kayako.com/ -w kayako -d 2
package main

func main() {
	Execute()
}

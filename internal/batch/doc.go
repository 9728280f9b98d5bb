// Package batch crawls several seeds concurrently.
//
// Each seed gets its own Crawler from a factory, so crawl state never leaks
// between seeds and per-site settings can be applied per seed. A seed that
// fails (invalid address, bad per-site settings) only fails its own result;
// the other seeds keep running.
package batch

// Package launcher runs the pre-fork worker pool behind the alchemist
// serve command.
//
// The master binds one TCP socket on Host:Port and hands it to every
// worker as inherited file descriptor 3. Workers are re-executions of the
// same binary; each accepts on the shared socket and serves the
// application named by the entry point. The master supervises the
// workers: it restarts crashed slots with backoff, aborts when a worker
// cannot boot, rolls the pool on Reload and stops it when its context is
// cancelled.
package launcher

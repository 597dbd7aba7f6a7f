// Package promise builds deferred chains of stages.
//
// A chain is declared with NewPromise, Then and OnException and does no work
// until it is started. Once started the stages run strictly one after another
// on a Pool worker: a failing stage hands over to its exception stage if it
// has one, otherwise the chain ends with that error.
package promise

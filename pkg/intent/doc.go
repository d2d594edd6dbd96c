// Package intent turns free text into structured operation requests.
//
// RegexRouter recognises "start|stop|restart [the] [vm] <target>" and
// "check|get|show cpu|memory [for] <target>" and maps target nicknames to
// node names through configurable aliases. StarlarkRouter lets operators
// supply their own route(text) function. Chain combines routers; the first
// match wins.
package intent

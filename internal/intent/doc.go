// Package intent turns free-form wallet commands into typed intents.
//
// A Recognizer matches text against an ordered rule table and extracts
// parameters, a Validator checks a complete intent locally, and a Resolver
// asks for missing parameters one at a time and merges the answers back.
// All three share one immutable Schemas table built by DefaultSchemas.
package intent

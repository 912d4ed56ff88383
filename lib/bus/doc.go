// Package bus implements the in-process change notification mechanism of
// the preference layer. Independent consumers subscribe to a namespace and
// are notified synchronously whenever it changes, without polling.
//
// Changes performed by other processes sharing the same persistent store
// are re-dispatched through the same bus by the namespace manager, so a
// subscriber cannot distinguish local from remote changes except through
// the explicit Origin flag on the notification. The flag exists so that
// consumers which both write and subscribe can avoid duplicate-processing
// loops.
package bus

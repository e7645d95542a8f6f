package task

import "slices"

// Triggered is one delivery leg dispatched by CheckReminders. Index is the
// reminder's position in its task's reminder list.
type Triggered struct {
	TaskID  uint32
	Title   string
	Channel Channel
	Index   int
}

type notice struct {
	title, body string
}

// eligible reports whether r may be attempted at now.
func (r *Reminder) eligible(now int64, p RetryPolicy) bool {
	if r.Sent || r.Time > now || r.RetryCount >= p.MaxRetries {
		return false
	}
	return r.LastAttempt == nil || now-*r.LastAttempt > int64(p.RetryDelay.Seconds())
}

// attemptAndRecord checks eligibility and, when eligible, books the attempt.
func attemptAndRecord(r *Reminder, now int64, p RetryPolicy) bool {
	if !r.eligible(now, p) {
		return false
	}
	r.LastAttempt = &now
	r.RetryCount++
	return true
}

// markDelivered records ch and sets Sent once every leg is in. Channels
// outside the reminder type are ignored.
func (r *Reminder) markDelivered(ch Channel) {
	if slices.Contains(r.Type.Channels(), ch) && !r.delivered(ch) {
		r.Delivered = append(r.Delivered, ch)
	}
	if len(r.pendingChannels()) == 0 {
		r.Sent = true
		r.ErrorMessage = ""
	}
}

// CheckReminders books an attempt on every eligible reminder and returns
// the legs to deliver. Notification legs are delivered here through the
// Notifier; e-mail and SMS legs are left to the caller, which confirms
// them with MarkChannelDelivered or RecordFailure.
func (s *Store) CheckReminders() []Triggered {
	s.mu.Lock()
	now := s.now().Unix()
	var (
		out     []Triggered
		notices []notice
	)
	for _, id := range s.sortedIDs() {
		t := s.tasks[id]
		for i := range t.Reminders {
			r := &t.Reminders[i]
			if !attemptAndRecord(r, now, s.policy) {
				continue
			}
			for _, ch := range r.pendingChannels() {
				out = append(out, Triggered{TaskID: id, Title: t.Title, Channel: ch, Index: i})
				if ch == ChannelNotification {
					notices = append(notices, notice{title: "Task Reminder: " + t.Title, body: t.Description})
					r.markDelivered(ch)
				}
			}
		}
	}
	if len(out) > 0 {
		s.persist()
		s.logger.Infof("[reminder] %d deliveries triggered", len(out))
	}
	notifier := s.Notifier
	s.mu.Unlock()

	if notifier != nil {
		for _, n := range notices {
			if err := notifier.Notify(n.title, n.body); err != nil {
				s.logger.Warnf("[reminder] notification failed: %v", err)
			}
		}
	}
	return out
}

// MarkReminderSent marks the whole reminder delivered.
func (s *Store) MarkReminderSent(id uint32, index int) error {
	return s.mutateReminder(id, index, func(r *Reminder) {
		for _, ch := range r.Type.Channels() {
			r.markDelivered(ch)
		}
		r.Sent = true
		r.ErrorMessage = ""
	})
}

// MarkChannelDelivered records one delivered leg of a reminder.
func (s *Store) MarkChannelDelivered(id uint32, index int, ch Channel) error {
	return s.mutateReminder(id, index, func(r *Reminder) { r.markDelivered(ch) })
}

// RecordFailure stores the last delivery error of a reminder.
func (s *Store) RecordFailure(id uint32, index int, msg string) error {
	return s.mutateReminder(id, index, func(r *Reminder) {
		r.ErrorMessage = msg
		if !r.Sent && r.RetryCount >= s.policy.MaxRetries {
			s.logger.Warnf("[reminder] reminder %d of task %d failed after %d attempts: %s", index, id, r.RetryCount, msg)
		}
	})
}

func (s *Store) mutateReminder(id uint32, index int, fn func(*Reminder)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return taskNotFound(id)
	}
	if index < 0 || index >= len(t.Reminders) {
		return reminderNotFound(id, index)
	}
	fn(&t.Reminders[index])
	t.UpdatedAt = s.now().Unix()
	s.persist()
	return nil
}

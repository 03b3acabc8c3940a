// Package scheduler запускает конвейер захвата по расписанию.
//
// Расписание задаётся либо cron-выражением (CAPTURE_CRON), либо
// интервалом в секундах (CAPTURE_INTERVAL_SEC); cron имеет приоритет.
// Если конвейер уже активен, тик пропускается с записью в лог.
//
// После удачного запуска захвата планировщик может автоматически
// переводить подходящие планы в очередь тратамента (AUTO_MIGRATE=true).
package scheduler
